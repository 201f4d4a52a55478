// Package inspire registers the INSPIRE-specific metadata fields into the
// sparse field registry. It has no storage or handlers of its own: the sparse
// handler persists the values and inserts the fields into every schema build.
package inspire

import (
	"fmt"
	"strings"

	"github.com/geocat-project/geocat/internal/metadata"
)

// Themes is the controlled list offered by the theme field. Values are the
// official INSPIRE registry URIs.
var Themes = []metadata.Choice{
	{Value: "http://inspire.ec.europa.eu/theme/ad", Label: "Addresses"},
	{Value: "http://inspire.ec.europa.eu/theme/au", Label: "Administrative units"},
	{Value: "http://inspire.ec.europa.eu/theme/el", Label: "Elevation"},
	{Value: "http://inspire.ec.europa.eu/theme/hy", Label: "Hydrography"},
	{Value: "http://inspire.ec.europa.eu/theme/lc", Label: "Land cover"},
	{Value: "http://inspire.ec.europa.eu/theme/lu", Label: "Land use"},
	{Value: "http://inspire.ec.europa.eu/theme/oi", Label: "Orthoimagery"},
	{Value: "http://inspire.ec.europa.eu/theme/tn", Label: "Transport networks"},
}

var conformityChoices = []metadata.Choice{
	{Value: "conformant", Label: "Conformant"},
	{Value: "notConformant", Label: "Not conformant"},
	{Value: "notEvaluated", Label: "Not evaluated"},
}

var titles = map[string]map[string]string{
	"inspire_theme": {
		"": "INSPIRE theme", "it": "Tema INSPIRE", "de": "INSPIRE-Thema",
	},
	"inspire_spatial_resolution": {
		"": "Spatial resolution (scale denominator)",
		"it": "Risoluzione spaziale (denominatore di scala)",
		"de": "Räumliche Auflösung (Maßstabszahl)",
	},
	"inspire_conformity": {
		"": "Conformity to implementing rules",
		"it": "Conformità alle disposizioni di esecuzione",
		"de": "Konformität mit den Durchführungsbestimmungen",
	},
	"inspire_lineage": {
		"": "Lineage", "it": "Genealogia", "de": "Herkunft",
	},
}

func localize(field string) metadata.SparseFieldInit {
	return func(_ string, sub metadata.Subschema, _ *metadata.Schema, lang string) {
		byLang := titles[field]
		if title, ok := byLang[lang]; ok {
			sub.SetTitle(title)
		} else {
			sub.SetTitle(byLang[""])
		}
	}
}

// Register adds the INSPIRE fields to the registry. Call once at wiring time,
// after the core fields are known but before any schema is built. The fields
// are placed right after the keywords block so the schema reads as one
// classification section.
func Register(registry *metadata.SparseRegistry) {
	registry.Register(metadata.SparseField{
		Name: "inspire_theme",
		Schema: metadata.Subschema{
			"type":                     "array",
			"items":                    map[string]any{"type": "string"},
			metadata.ChoicesAnnotation: Themes,
		},
		After: "keywords",
		Init:  localize("inspire_theme"),
	})
	registry.Register(metadata.SparseField{
		Name:   "inspire_spatial_resolution",
		Schema: metadata.Subschema{"type": "integer", "minimum": 1},
		After:  "inspire_theme",
		Init:   localize("inspire_spatial_resolution"),
	})
	registry.Register(metadata.SparseField{
		Name: "inspire_conformity",
		Schema: metadata.Subschema{
			"type":                     "string",
			metadata.ChoicesAnnotation: conformityChoices,
		},
		After: "inspire_spatial_resolution",
		Init:  localize("inspire_conformity"),
	})
	registry.Register(metadata.SparseField{
		Name:   "inspire_lineage",
		Schema: metadata.Subschema{"type": "string"},
		After:  "inspire_conformity",
		Init:   localize("inspire_lineage"),
	})
}

// ThemeLabel resolves a theme URI to its English label. Unknown URIs fall
// back to the URI's last path segment so reports stay readable.
func ThemeLabel(uri string) string {
	for _, theme := range Themes {
		if theme.Value == uri {
			return theme.Label
		}
	}
	if i := strings.LastIndex(uri, "/"); i >= 0 && i < len(uri)-1 {
		return fmt.Sprintf("unknown theme %q", uri[i+1:])
	}
	return fmt.Sprintf("unknown theme %q", uri)
}
