package thesaurus

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/cache"
)

// LabelSource is the read side of the thesaurus tables the cache sits in
// front of. *Store satisfies it.
type LabelSource interface {
	Labels(ctx context.Context, lang string) (map[string]string, error)
	LastUpdated(ctx context.Context) (time.Time, error)
}

// labelEnvelope is the cached artifact: the computed labels together with
// the thesaurus last-modified marker captured at computation time.
type labelEnvelope struct {
	Date   time.Time         `json:"date"`
	Labels map[string]string `json:"labels"`
}

// LabelCache serves per-language label dictionaries through a cache backend.
// A hit is only served while the stored marker still equals the thesaurus's
// current one; a stale entry is treated as a miss and recomputed
// synchronously.
type LabelCache struct {
	source LabelSource
	cache  cache.Cache
	logger *zap.Logger
}

// NewLabelCache creates a LabelCache over a source and a cache backend.
func NewLabelCache(source LabelSource, c cache.Cache, logger *zap.Logger) *LabelCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LabelCache{source: source, cache: c, logger: logger}
}

// Labels returns the about-URI to label mapping for lang, cached against the
// thesaurus last-modified marker. The marker is captured before the cache
// lookup, so a thesaurus mutation racing with a rebuild is detected on the
// next read at the latest.
func (lc *LabelCache) Labels(ctx context.Context, lang string) (map[string]string, error) {
	date, err := lc.source.LastUpdated(ctx)
	if err != nil {
		return nil, err
	}

	key := "labels:" + lang
	if data, err := lc.cache.Get(ctx, key); err == nil {
		var env labelEnvelope
		if err := json.Unmarshal(data, &env); err == nil && env.Date.Equal(date) {
			return env.Labels, nil
		}
	} else if !cache.IsCacheMiss(err) {
		lc.logger.Warn("label cache read failed", zap.String("lang", lang), zap.Error(err))
	}

	labels, err := lc.source.Labels(ctx, lang)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(labelEnvelope{Date: date, Labels: labels})
	if err != nil {
		return nil, err
	}
	if err := lc.cache.Set(ctx, key, data, 0); err != nil {
		lc.logger.Warn("label cache write failed", zap.String("lang", lang), zap.Error(err))
	}
	return labels, nil
}

// Clear empties the cache. Clearing an already-empty cache is a no-op.
func (lc *LabelCache) Clear(ctx context.Context) error {
	return lc.cache.Clear(ctx)
}
