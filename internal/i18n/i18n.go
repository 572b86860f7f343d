// Package i18n resolves user-facing strings by language. Tables are
// embedded yaml trees; keys are dotted paths into them.
package i18n

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/go-yaml/yaml"
)

//go:embed locales/*.yaml
var localesFS embed.FS

const fallbackLanguage = "en"

type Bundle struct {
	mu     sync.RWMutex
	tables map[string]map[string]any
}

// Load parses every embedded locale table. The file name up to the
// extension is the language tag.
func Load() (*Bundle, error) {
	entries, err := localesFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}

	b := &Bundle{tables: make(map[string]map[string]any)}
	for _, entry := range entries {
		name := entry.Name()
		lang := strings.TrimSuffix(name, ".yaml")
		raw, err := localesFS.ReadFile("locales/" + name)
		if err != nil {
			return nil, err
		}
		var parsed map[any]any
		if err := yaml.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", lang, err)
		}
		b.tables[lang] = normalize(parsed)
	}

	if _, ok := b.tables[fallbackLanguage]; !ok {
		return nil, fmt.Errorf("fallback locale %s missing", fallbackLanguage)
	}

	return b, nil
}

// Register merges an extra table into a language, section by section.
// Scalar values in the new table win; nested sections merge recursively
// so a partial overlay never wipes out sibling keys.
func (b *Bundle) Register(lang string, table map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	existing, ok := b.tables[lang]
	if !ok {
		b.tables[lang] = table
		return
	}
	mergeSections(existing, table)
}

// normalize rewrites yaml's map[any]any trees into string-keyed maps.
func normalize(in map[any]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		name := fmt.Sprintf("%v", key)
		if section, ok := value.(map[any]any); ok {
			out[name] = normalize(section)
			continue
		}
		out[name] = value
	}
	return out
}

func mergeSections(dst, src map[string]any) {
	for key, value := range src {
		srcSection, srcIsMap := value.(map[string]any)
		dstSection, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeSections(dstSection, srcSection)
			continue
		}
		dst[key] = value
	}
}

// Languages lists the loaded language tags.
func (b *Bundle) Languages() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	langs := make([]string, 0, len(b.tables))
	for lang := range b.tables {
		langs = append(langs, lang)
	}
	return langs
}

// Resolve looks up a dotted key in the requested language, falling back
// to english and finally to the key itself. Params replace {{name}}
// placeholders in the resolved string.
func (b *Bundle) Resolve(lang, key string, params map[string]string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := lookup(b.tables[lang], key)
	if !ok && lang != fallbackLanguage {
		// Regional tags fall back to their base language first.
		if base, _, found := strings.Cut(lang, "-"); found {
			value, ok = lookup(b.tables[base], key)
		}
		if !ok {
			value, ok = lookup(b.tables[fallbackLanguage], key)
		}
	}
	if !ok {
		return key
	}

	return interpolate(value, params)
}

// Section returns everything under a dotted prefix, with the requested
// language's values merged over the default locale's. A partially
// translated section still renders complete.
func (b *Bundle) Section(lang, prefix string) map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	merged := copySection(sectionOf(b.tables[fallbackLanguage], prefix))
	if merged == nil {
		merged = map[string]any{}
	}
	if lang == fallbackLanguage {
		return merged
	}

	if base, _, found := strings.Cut(lang, "-"); found {
		if overlay := sectionOf(b.tables[base], prefix); overlay != nil {
			mergeSections(merged, copySection(overlay))
		}
	}
	if overlay := sectionOf(b.tables[lang], prefix); overlay != nil {
		mergeSections(merged, copySection(overlay))
	}
	return merged
}

func sectionOf(table map[string]any, prefix string) map[string]any {
	if table == nil {
		return nil
	}
	if prefix == "" {
		return table
	}
	node := any(table)
	for _, part := range strings.Split(prefix, ".") {
		section, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = section[part]
		if !ok {
			return nil
		}
	}
	section, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	return section
}

func copySection(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		if section, ok := value.(map[string]any); ok {
			out[key] = copySection(section)
			continue
		}
		out[key] = value
	}
	return out
}

func lookup(table map[string]any, key string) (string, bool) {
	if table == nil {
		return "", false
	}
	parts := strings.Split(key, ".")
	node := any(table)
	for _, part := range parts {
		section, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		node, ok = section[part]
		if !ok {
			return "", false
		}
	}
	leaf, ok := node.(string)
	return leaf, ok
}

func interpolate(template string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(template, "{{") {
		return template
	}
	result := template
	for name, value := range params {
		result = strings.ReplaceAll(result, "{{"+name+"}}", value)
	}
	return result
}
