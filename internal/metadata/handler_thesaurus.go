package metadata

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/resource"
	"github.com/geocat-project/geocat/internal/thesaurus"
)

const (
	tkeywordValuesKey = "thesaurus:values"
	tkeywordCardsKey  = "thesaurus:cards"
)

// ThesaurusKeywordsHandler owns one property per configured thesaurus,
// shaped by the thesaurus cardinality and populated from the controlled
// vocabulary's localized labels. Labels resolve through the label cache,
// which also applies the "{lang}-ovr" override pass.
type ThesaurusKeywordsHandler struct {
	tstore *thesaurus.Store
	rstore *resource.Store
	labels *thesaurus.LabelCache
	logger *zap.Logger

	mu     sync.Mutex
	broken map[string]bool
}

// NewThesaurusKeywordsHandler creates the thesaurus keyword handler. labels
// is optional; without it, choices carry the keywords' base labels only.
func NewThesaurusKeywordsHandler(tstore *thesaurus.Store, rstore *resource.Store, labels *thesaurus.LabelCache, logger *zap.Logger) *ThesaurusKeywordsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThesaurusKeywordsHandler{tstore: tstore, rstore: rstore, labels: labels, logger: logger}
}

func (h *ThesaurusKeywordsHandler) ID() string { return "thesaurus" }

func (h *ThesaurusKeywordsHandler) UpdateSchema(ctx context.Context, _ *Context, schema *Schema, lang string) error {
	list, err := h.tstore.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list thesauri: %w", err)
	}

	var overrides map[string]string
	if h.labels != nil {
		overrides, err = h.labels.Labels(ctx, lang)
		if err != nil {
			h.logger.Warn("thesaurus label dictionary unavailable, using base labels",
				zap.String("lang", lang), zap.Error(err))
			overrides = nil
		}
	}

	for _, th := range list {
		var sub Subschema
		if th.CardMax == 1 {
			sub = Subschema{"type": "string"}
		} else {
			sub = Subschema{"type": "array", "items": map[string]any{"type": "string"}}
		}
		sub.SetTitle(th.Title)
		sub.SetHandler(h.ID())

		keywords, err := h.tstore.Keywords(ctx, th.Identifier, lang)
		if err != nil {
			// A thesaurus whose entries cannot be loaded stays in the schema
			// but is not editable; an administrator has to restore the
			// vocabulary before clients may write through it. The broken set
			// is what turns every later read of the property into a
			// field-scoped error.
			h.logger.Warn("thesaurus keywords unavailable, marking property read-only",
				zap.String("thesaurus", th.Identifier), zap.Error(err))
			sub.SetReadOnly()
			h.setBroken(th.Identifier, true)
		} else {
			h.setBroken(th.Identifier, false)
			choices := make([]Choice, 0, len(keywords))
			for _, kw := range keywords {
				label := kw.Label
				if l, ok := overrides[kw.About]; ok {
					label = l
				}
				choices = append(choices, Choice{Value: kw.About, Label: label})
			}
			sub[ChoicesAnnotation] = choices
		}

		schema.AddProperty(th.Identifier, sub)
	}
	return nil
}

func (h *ThesaurusKeywordsHandler) setBroken(identifier string, broken bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !broken {
		delete(h.broken, identifier)
		return
	}
	if h.broken == nil {
		h.broken = make(map[string]bool)
	}
	h.broken[identifier] = true
}

func (h *ThesaurusKeywordsHandler) isBroken(identifier string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broken[identifier]
}

func (h *ThesaurusKeywordsHandler) LoadSerializationContext(ctx context.Context, hctx *Context, res *resource.Resource) error {
	values, err := h.rstore.ThesaurusKeywords(ctx, res.ID)
	if err != nil {
		return err
	}
	hctx.Set(tkeywordValuesKey, values)

	list, err := h.tstore.All(ctx)
	if err != nil {
		return err
	}
	cards := make(map[string]int, len(list))
	for _, th := range list {
		cards[th.Identifier] = th.CardMax
	}
	hctx.Set(tkeywordCardsKey, cards)
	return nil
}

func (h *ThesaurusKeywordsHandler) GetInstanceValue(_ context.Context, hctx *Context, _ *resource.Resource, field, _ string) (any, bool) {
	if h.isBroken(field) {
		hctx.Errors.Add(fmt.Sprintf(
			"the %s vocabulary could not be loaded and the field is read-only; an administrator has to restore the thesaurus", field), field)
		return nil, false
	}

	stashed, _ := hctx.Get(tkeywordValuesKey)
	values, _ := stashed.(map[string][]string)
	abouts := values[field]

	stashedCards, _ := hctx.Get(tkeywordCardsKey)
	cards, _ := stashedCards.(map[string]int)
	if cards[field] == 1 {
		// Single-valued thesaurus: a resource without a keyword has the key
		// omitted, not serialized as an empty string.
		if len(abouts) == 0 {
			return nil, false
		}
		return abouts[0], true
	}

	out := make([]any, 0, len(abouts))
	for _, about := range abouts {
		out = append(out, about)
	}
	return out, true
}

func (h *ThesaurusKeywordsHandler) UpdateResource(ctx context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}

	var abouts []string
	switch v := raw.(type) {
	case nil:
		abouts = nil
	case string:
		// Single-valued thesaurus property.
		if v != "" {
			abouts = []string{v}
		}
	default:
		parsed, err := asStringSlice(raw)
		if err != nil {
			return err
		}
		abouts = parsed
	}
	return h.rstore.ReplaceThesaurusKeywords(ctx, res.ID, field, abouts)
}
