package metadata

// Static UI strings by language. Thesaurus-backed labels are localized
// through the label cache; these cover the schema skeleton and the
// column-backed core fields.
var translations = map[string]map[string]string{
	"it": {
		"schema.title":        "Metadati della risorsa",
		"field.title":         "Titolo",
		"field.abstract":      "Riassunto",
		"field.purpose":       "Scopo",
		"field.language":      "Lingua",
		"field.date":          "Data",
		"field.date_type":     "Tipo di data",
		"field.edition":       "Edizione",
		"field.attribution":   "Attribuzione",
		"field.license":       "Licenza",
		"field.restrictions":  "Restrizioni",
		"field.doi":           "DOI",
		"field.group":         "Gruppo",
		"field.keywords":      "Parole chiave",
		"field.regions":       "Regioni",
		"field.linked":        "Risorse collegate",
		"field.owner":         "Proprietario",
		"field.author":        "Autore",
		"field.poc":           "Punto di contatto",
		"field.distributor":   "Distributore",
	},
	"de": {
		"schema.title":       "Ressourcen-Metadaten",
		"field.title":        "Titel",
		"field.abstract":     "Zusammenfassung",
		"field.keywords":     "Schlagworte",
		"field.regions":      "Regionen",
		"field.language":     "Sprache",
		"field.date":         "Datum",
		"field.license":      "Lizenz",
		"field.owner":        "Eigentümer",
	},
}

var defaultStrings = map[string]string{
	"schema.title":       "Resource metadata",
	"field.title":        "Title",
	"field.abstract":     "Abstract",
	"field.purpose":      "Purpose",
	"field.language":     "Language",
	"field.date":         "Date",
	"field.date_type":    "Date type",
	"field.edition":      "Edition",
	"field.attribution":  "Attribution",
	"field.license":      "License",
	"field.restrictions": "Restrictions",
	"field.doi":          "DOI",
	"field.group":        "Group",
	"field.keywords":     "Keywords",
	"field.regions":      "Regions",
	"field.linked":       "Linked resources",
	"field.owner":        "Owner",
	"field.author":       "Author",
	"field.poc":          "Point of contact",
	"field.distributor":  "Distributor",
}

// T returns the translation of key for lang, falling back to the default
// string, falling back to the key itself.
func T(lang, key string) string {
	if m, ok := translations[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := defaultStrings[key]; ok {
		return s
	}
	return key
}
