package preprocess

import (
	"strings"

	"prep_server/core/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Punctuation is the ASCII punctuation set stripped from text.
const Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// DomainSeparator joins the domain prefix to the text.
const DomainSeparator = " :- "

// RemovePunctuation strips every character of Punctuation from text.
func RemovePunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x80 && strings.ContainsRune(Punctuation, r) {
			return -1
		}
		return r
	}, text)
}

// ToLower lower-cases text using Unicode case mapping.
func ToLower(text string) string {
	// cases.Caser keeps state between calls, so each call gets its own.
	return cases.Lower(language.Und).String(text)
}

// TextNormalizer applies the text transforms in their fixed order.
type TextNormalizer struct {
	extractor *DomainExtractor
}

// NewTextNormalizer creates a normalizer that resolves domains with extractor.
func NewTextNormalizer(extractor *DomainExtractor) *TextNormalizer {
	return &TextNormalizer{extractor: extractor}
}

// PrependDomain returns the record text prefixed with its domain.
// Records without a URL get the "empty" prefix; unparseable URLs get an empty one.
func (n *TextNormalizer) PrependDomain(r domain.Record) string {
	if !r.HasURL() {
		return domain.EmptyURL + DomainSeparator + r.Text
	}
	res := n.extractor.Extract(r.URL)
	return res.Domain.Domain + DomainSeparator + r.Text
}

// Normalize strips punctuation, then lower-cases, then prepends the domain,
// each pass over the whole table. The input table is not modified.
func (n *TextNormalizer) Normalize(table domain.RecordTable) domain.RecordTable {
	stripped := table.Map(func(r domain.Record) domain.Record {
		r.Text = RemovePunctuation(r.Text)
		return r
	})
	lowered := stripped.Map(func(r domain.Record) domain.Record {
		r.Text = ToLower(r.Text)
		return r
	})
	return lowered.Map(func(r domain.Record) domain.Record {
		r.Text = n.PrependDomain(r)
		return r
	})
}
