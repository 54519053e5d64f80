// Package i18n resolves user-facing messages from YAML catalogues.
//
// Each catalogue file has the language code as its top-level key and nested
// maps below it; nested keys are addressed with dots:
//
//	es:
//	  errors:
//	    user_not_found: "Usuario no encontrado"
//
// resolves "errors.user_not_found" for "es".
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

const defaultDir = "locales"

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	Lang() string
}

type catalog map[string]map[string]string

// Manager holds the loaded catalogues and negotiates languages.
type Manager struct {
	catalog     catalog
	defaultLang string
	langs       []string // index-aligned with the matcher's tags; defaultLang first
	matcher     language.Matcher
}

// Load loads the embedded catalogues.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(locales, defaultDir, defaultLang)
}

// LoadFS loads every .yaml/.yml file in dir of fsys.
func LoadFS(fsys fs.FS, dir, defaultLang string) (*Manager, error) {
	cat, err := readCatalog(fsys, dir)
	if err != nil {
		return nil, err
	}

	defaultLang = normalize(defaultLang)
	if defaultLang == "" {
		defaultLang = "es"
	}
	if _, ok := cat[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	others := make([]string, 0, len(cat)-1)
	for lang := range cat {
		if lang != defaultLang {
			others = append(others, lang)
		}
	}
	sort.Strings(others)
	langs := append([]string{defaultLang}, others...)

	tags := make([]language.Tag, len(langs))
	for i, lang := range langs {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("i18n: invalid language %q: %w", lang, err)
		}
		tags[i] = tag
	}

	return &Manager{
		catalog:     cat,
		defaultLang: defaultLang,
		langs:       langs,
		matcher:     language.NewMatcher(tags),
	}, nil
}

// Match picks the best available translator for an Accept-Language header value.
func (m *Manager) Match(acceptLanguage string) Translator {
	if m == nil {
		return translator{}
	}

	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return m.Translator(m.defaultLang)
	}

	_, idx, confidence := m.matcher.Match(prefs...)
	if confidence == language.No {
		return m.Translator(m.defaultLang)
	}

	return m.Translator(m.langs[idx])
}

// Translator returns a translator for lang, or for the default language when lang is unknown.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	lang = normalize(lang)
	if _, ok := m.catalog[lang]; !ok {
		lang = m.defaultLang
	}

	return translator{
		lang:     lang,
		messages: m.catalog[lang],
		fallback: m.catalog[m.defaultLang],
	}
}

// Languages returns the loaded languages in sorted order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	out := append([]string(nil), m.langs...)
	sort.Strings(out)
	return out
}

func (m *Manager) DefaultLang() string {
	if m == nil {
		return ""
	}
	return m.defaultLang
}

type translator struct {
	lang     string
	messages map[string]string
	fallback map[string]string
}

func (t translator) Lang() string { return t.lang }

// T returns the message for key, falling back to the default language and
// finally to the key itself.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	if msg, ok := t.messages[key]; ok {
		return msg
	}
	if msg, ok := t.fallback[key]; ok {
		return msg
	}
	return key
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

func readCatalog(fsys fs.FS, dir string) (catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", dir, err)
	}

	cat := make(catalog)
	files := 0
	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files++

		name := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("i18n: read file %s: %w", name, err)
		}

		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("i18n: parse file %s: %w", name, err)
		}

		for lang, tree := range doc {
			lang = normalize(lang)
			nested, ok := tree.(map[string]any)
			if lang == "" || !ok {
				continue
			}
			if cat[lang] == nil {
				cat[lang] = make(map[string]string)
			}
			flatten("", nested, cat[lang])
		}
	}

	if files == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}

	return cat, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for key, value := range in {
		if prefix != "" {
			key = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			flatten(key, v, out)
		case nil:
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}
