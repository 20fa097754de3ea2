// Package tokenizer adapts HuggingFace tokenizer.json files to out.Tokenizer.
package tokenizer

import (
	"errors"
	"fmt"
	"slices"

	"prep_server/core/domain"
	"prep_server/core/port/out"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

const (
	defaultPadToken = "[PAD]"
	probeText       = "probe"
)

// encoder is the part of *tokenizer.Tokenizer the adapter uses.
type encoder interface {
	EncodeSingle(input string, addSpecialTokensOpt ...bool) (*tokenizer.Encoding, error)
}

// Options tunes how sequences are built.
type Options struct {
	// Identity names the vocabulary in cache keys, e.g. "distilbert-base-uncased".
	Identity string
	// SpecialTokens overrides the probed special-token overhead when > 0.
	SpecialTokens int
	// PadID is used when the vocabulary has no "[PAD]" token.
	PadID int
}

// Tokenizer implements out.Tokenizer. Sequences are truncated keeping the
// trailing special tokens and right-padded with the pad id.
type Tokenizer struct {
	enc      encoder
	identity string
	padID    int
	leading  int
	trailing int
}

var _ out.Tokenizer = (*Tokenizer)(nil)

// Load reads a tokenizer.json file.
func Load(path string, opts Options) (*Tokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", path, err)
	}
	if id, ok := tk.TokenToId(defaultPadToken); ok {
		opts.PadID = id
	}
	return newTokenizer(tk, opts)
}

func newTokenizer(enc encoder, opts Options) (*Tokenizer, error) {
	if opts.Identity == "" {
		return nil, errors.New("tokenizer identity is required")
	}
	t := &Tokenizer{enc: enc, identity: opts.Identity, padID: opts.PadID}

	leading, trailing, err := probeSpecialTokens(enc)
	if err != nil {
		return nil, err
	}
	t.leading, t.trailing = leading, trailing
	if opts.SpecialTokens > 0 && opts.SpecialTokens != leading+trailing {
		// Explicit override: keep the probed trailing count where possible.
		t.trailing = min(trailing, opts.SpecialTokens)
		t.leading = opts.SpecialTokens - t.trailing
	}
	return t, nil
}

// probeSpecialTokens finds how many special tokens wrap a single sentence.
func probeSpecialTokens(enc encoder) (leading, trailing int, err error) {
	with, err := enc.EncodeSingle(probeText, true)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to probe tokenizer: %w", err)
	}
	without, err := enc.EncodeSingle(probeText, false)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to probe tokenizer: %w", err)
	}

	inner := without.Ids
	outer := with.Ids
	for i := 0; i+len(inner) <= len(outer); i++ {
		if slices.Equal(outer[i:i+len(inner)], inner) {
			return i, len(outer) - len(inner) - i, nil
		}
	}
	return 0, 0, fmt.Errorf("tokenizer adds tokens inside the sentence; cannot derive special-token overhead")
}

// Identity returns the vocabulary name.
func (t *Tokenizer) Identity() string { return t.identity }

// SpecialTokenOverhead returns the number of special tokens added per sentence.
func (t *Tokenizer) SpecialTokenOverhead() int { return t.leading + t.trailing }

// Encode tokenizes text with special tokens into exactly maxLen positions.
func (t *Tokenizer) Encode(text string, maxLen int) (domain.EncodedFeature, error) {
	if maxLen <= 0 {
		return domain.EncodedFeature{}, fmt.Errorf("max length must be positive, got %d", maxLen)
	}
	enc, err := t.enc.EncodeSingle(text, true)
	if err != nil {
		return domain.EncodedFeature{}, err
	}

	ids := enc.Ids
	if len(ids) > maxLen {
		keepTail := min(t.trailing, maxLen, len(ids))
		truncated := make([]int, 0, maxLen)
		truncated = append(truncated, ids[:maxLen-keepTail]...)
		truncated = append(truncated, ids[len(ids)-keepTail:]...)
		ids = truncated
	}

	feature := domain.EncodedFeature{
		InputIDs:      make([]int, maxLen),
		AttentionMask: make([]int, maxLen),
	}
	copy(feature.InputIDs, ids)
	for i := range feature.InputIDs {
		if i < len(ids) {
			feature.AttentionMask[i] = 1
		} else {
			feature.InputIDs[i] = t.padID
		}
	}
	return feature, nil
}
