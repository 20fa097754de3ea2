package preprocess

import (
	"testing"

	"prep_server/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRemovePunctuation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello, World!", "Hello World"},
		{"Show HN: I built a thing (v2.0)", "Show HN I built a thing v20"},
		{"a-b_c~d`e", "abcde"},
		{"no punctuation here", "no punctuation here"},
		{"", ""},
		{"café naïve über", "café naïve über"},
	}

	for _, tt := range tests {
		got := RemovePunctuation(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, RemovePunctuation(got), "idempotent for %q", tt.in)
	}
}

func TestToLower(t *testing.T) {
	for _, in := range []string{"Show HN", "ÀÉÎ Straße", "already lower", "", "MiXeD 123"} {
		once := ToLower(in)
		assert.Equal(t, once, ToLower(once), "idempotent for %q", in)
	}
	assert.Equal(t, "show hn", ToLower("Show HN"))
	assert.Equal(t, "àéî", ToLower("ÀÉÎ"))
}

func TestPrependDomain(t *testing.T) {
	n := NewTextNormalizer(NewDomainExtractor(zerolog.Nop()))

	assert.Equal(t, "empty :- Hi", n.PrependDomain(domain.Record{URL: "empty", Text: "Hi"}))
	assert.Equal(t, "example :- Hi", n.PrependDomain(domain.Record{URL: "http://sub.example.com/x", Text: "Hi"}))
	assert.Equal(t, " :- Hi", n.PrependDomain(domain.Record{URL: "http://[::1", Text: "Hi"}))
}

func TestNormalizeOrderAndImmutability(t *testing.T) {
	n := NewTextNormalizer(NewDomainExtractor(zerolog.Nop()))
	in := domain.NewRecordTable([]domain.Record{
		{ID: 1, Text: "Show HN: My App!", URL: "https://My-App.io/launch"},
		{ID: 2, Text: "Ask HN: Why?", URL: domain.EmptyURL},
		{ID: 3, Text: "GitHub's new CLI", URL: "https://github.blog/x"},
	})

	out := n.Normalize(in)

	assert.Equal(t, []string{
		"my-app :- show hn my app",
		"empty :- ask hn why",
		"github :- githubs new cli",
	}, out.Texts())

	// Input table untouched, row order preserved.
	assert.Equal(t, []string{"Show HN: My App!", "Ask HN: Why?", "GitHub's new CLI"}, in.Texts())
	for i := 0; i < out.Len(); i++ {
		a, _ := in.Row(i)
		b, _ := out.Row(i)
		assert.Equal(t, a.ID, b.ID)
	}
}
