package indexing

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Characters allowed through to the tsquery builder. Everything else is
// stripped before tokenization, so user input can never inject tsquery
// syntax.
var sanitizeRE = regexp.MustCompile(`[^\w\s./-]`)

// Filter builds the query-time search predicate over the index rows.
type Filter struct {
	cfg    Config
	logger *zap.Logger
}

// NewFilter creates a filter for the given indexing configuration.
func NewFilter(cfg Config, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{cfg: cfg, logger: logger}
}

// ResolveLanguage picks the query language: the explicit parameter wins,
// then the request locale, then the configured default. Unsupported values
// are logged and replaced by the default, never treated as "no language".
func (f *Filter) ResolveLanguage(explicit, request string) string {
	for _, candidate := range []string{explicit, request} {
		if candidate == "" {
			continue
		}
		if f.supported(candidate) {
			return candidate
		}
		f.logger.Warn("unsupported search language, falling back to default",
			zap.String("lang", candidate),
			zap.String("default", f.cfg.DefaultLanguage))
	}
	return f.cfg.DefaultLanguage
}

func (f *Filter) supported(lang string) bool {
	for _, l := range f.cfg.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Tokens sanitizes raw search text and returns the surviving tokens.
func Tokens(raw string) []string {
	return strings.Fields(sanitizeRE.ReplaceAllString(raw, ""))
}

// tsQuery renders tokens as a prefix-and-order-sensitive tsquery string:
// tokens joined with the followed-by connector, each marked as a prefix.
func tsQuery(tokens []string) string {
	marked := make([]string, len(tokens))
	for i, tok := range tokens {
		marked[i] = tok + ":*"
	}
	return strings.Join(marked, " <-> ")
}

// SearchClause builds a SQL predicate constraining resource primary keys to
// the matching index rows. Placeholders are numbered from $1; the caller
// appends the fragment to its own WHERE clause. When sanitization leaves no
// tokens the vector predicate is omitted and the clause matches every
// indexed resource.
func (f *Filter) SearchClause(index, raw, explicitLang, requestLang string) (string, []any, error) {
	fields, ok := f.cfg.Indexes[index]
	if !ok {
		return "", nil, fmt.Errorf("unknown search index %q", index)
	}

	multilang := false
	for _, field := range fields {
		if f.cfg.isMultilang(field) {
			multilang = true
			break
		}
	}

	args := []any{index}
	langClause := "language IS NULL"
	lang := f.cfg.DefaultLanguage
	if multilang {
		lang = f.ResolveLanguage(explicitLang, requestLang)
		args = append(args, lang)
		langClause = fmt.Sprintf("language = $%d", len(args))
	}

	tokens := Tokens(raw)
	vectorClause := ""
	if len(tokens) > 0 {
		args = append(args, f.cfg.tsConfig(lang), tsQuery(tokens))
		vectorClause = fmt.Sprintf(" AND vector @@ to_tsquery($%d::regconfig, $%d)", len(args)-1, len(args))
	}

	clause := fmt.Sprintf(
		"id IN (SELECT resource_id FROM resource_index WHERE index_name = $1 AND %s%s)",
		langClause, vectorClause)
	return clause, args, nil
}
