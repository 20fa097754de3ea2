package out

import "prep_server/core/domain"

// Tokenizer turns text into fixed-length token id sequences.
type Tokenizer interface {
	// Identity names the tokenizer (vocabulary), used in cache keys.
	Identity() string
	// SpecialTokenOverhead is the number of positions reserved for special tokens
	// when encoding a single sentence.
	SpecialTokenOverhead() int
	// Encode returns a feature of exactly maxLen positions, truncating or padding.
	Encode(text string, maxLen int) (domain.EncodedFeature, error)
}
