package thesaurus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/cache"
)

type fakeSource struct {
	labels  map[string]map[string]string
	date    time.Time
	queries int
}

func (f *fakeSource) Labels(_ context.Context, lang string) (map[string]string, error) {
	f.queries++
	return f.labels[lang], nil
}

func (f *fakeSource) LastUpdated(context.Context) (time.Time, error) {
	return f.date, nil
}

func TestLabelCache_CachesByLanguage(t *testing.T) {
	source := &fakeSource{
		labels: map[string]map[string]string{
			"en": {"http://example.org/kw/roads": "Roads"},
			"it": {"http://example.org/kw/roads": "Strade"},
		},
		date: time.Now(),
	}
	lc := NewLabelCache(source, cache.NewMemoryCache(), zap.NewNop())
	ctx := context.Background()

	en, err := lc.Labels(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, "Roads", en["http://example.org/kw/roads"])

	// Second read for the same language hits the cache.
	_, err = lc.Labels(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, 1, source.queries)

	it, err := lc.Labels(ctx, "it")
	require.NoError(t, err)
	assert.Equal(t, "Strade", it["http://example.org/kw/roads"])
	assert.Equal(t, 2, source.queries)
}

func TestLabelCache_StaleDateIsAMiss(t *testing.T) {
	source := &fakeSource{
		labels: map[string]map[string]string{"en": {"a": "old"}},
		date:   time.Unix(1000, 0),
	}
	lc := NewLabelCache(source, cache.NewMemoryCache(), zap.NewNop())
	ctx := context.Background()

	_, err := lc.Labels(ctx, "en")
	require.NoError(t, err)
	require.Equal(t, 1, source.queries)

	// Bump the thesaurus marker: the cached entry must not be served.
	source.date = time.Unix(2000, 0)
	source.labels["en"] = map[string]string{"a": "new"}

	labels, err := lc.Labels(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, "new", labels["a"])
	assert.Equal(t, 2, source.queries)

	// And the fresh entry is cached under the new marker.
	_, err = lc.Labels(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, 2, source.queries)
}

func TestLabelCache_ClearEmpty(t *testing.T) {
	lc := NewLabelCache(&fakeSource{}, cache.NewMemoryCache(), nil)
	assert.NoError(t, lc.Clear(context.Background()))
	assert.NoError(t, lc.Clear(context.Background()))
}
