package indexing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterConfig() Config {
	return Config{
		Indexes: map[string][]string{
			"default":  {"title", "abstract"},
			"keywords": {"keywords"},
		},
		MultilangFields: []string{"title"},
		Languages:       []string{"it", "en"},
		DefaultLanguage: "it",
		PostgresLangs:   map[string]string{"it": "italian", "en": "english"},
	}
}

func TestResolveLanguage(t *testing.T) {
	f := NewFilter(filterConfig(), nil)

	assert.Equal(t, "en", f.ResolveLanguage("en", "it"), "explicit wins")
	assert.Equal(t, "en", f.ResolveLanguage("", "en"), "request locale is second")
	assert.Equal(t, "it", f.ResolveLanguage("", ""), "default is last")
	assert.Equal(t, "en", f.ResolveLanguage("xx", "en"), "unsupported explicit falls through")
	assert.Equal(t, "it", f.ResolveLanguage("xx", "yy"), "all unsupported resolves to default")
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"rivers", "lakes"}, Tokens("rivers & lakes!"))
	assert.Equal(t, []string{"v1.2/north-east"}, Tokens("v1.2/north-east"))
	assert.Empty(t, Tokens("!!! &&& '''"))
	assert.Empty(t, Tokens(""))
}

func TestSearchClauseMultilingual(t *testing.T) {
	f := NewFilter(filterConfig(), nil)

	clause, args, err := f.SearchClause("default", "fiumi lombardia", "", "it")
	require.NoError(t, err)

	assert.Contains(t, clause, "index_name = $1")
	assert.Contains(t, clause, "language = $2")
	assert.Contains(t, clause, "to_tsquery($3::regconfig, $4)")
	assert.Equal(t, []any{"default", "it", "italian", "fiumi:* <-> lombardia:*"}, args)
}

func TestSearchClausePlainIndex(t *testing.T) {
	f := NewFilter(filterConfig(), nil)

	clause, args, err := f.SearchClause("keywords", "hydrology", "en", "")
	require.NoError(t, err)

	assert.Contains(t, clause, "language IS NULL")
	assert.NotContains(t, clause, "language = $")
	assert.Equal(t, []any{"keywords", "italian", "hydrology:*"}, args)
}

func TestSearchClauseEmptySearchMatchesAll(t *testing.T) {
	f := NewFilter(filterConfig(), nil)

	clause, args, err := f.SearchClause("default", "&&&", "", "en")
	require.NoError(t, err)

	assert.NotContains(t, clause, "@@")
	assert.Equal(t, []any{"default", "en"}, args)
}

func TestSearchClauseUnknownIndex(t *testing.T) {
	f := NewFilter(filterConfig(), nil)

	_, _, err := f.SearchClause("nope", "x", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}
