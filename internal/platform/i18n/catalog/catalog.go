// Package catalog loads embedded YAML message catalogs into x/text.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// LocaleCatalog stores all messages for one locale, grouped by namespace.
type LocaleCatalog struct {
	Locale     string
	Namespaces map[string]map[string]string
}

// Bundle contains all locale catalogs loaded from the embedded files.
type Bundle struct {
	locales map[string]*LocaleCatalog
}

var defaultBundle = mustLoadAndRegisterEmbedded()

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads catalog files embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return load(embeddedCatalogFS)
}

func mustLoadAndRegisterEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(fmt.Sprintf("load embedded i18n catalogs: %v", err))
	}
	if err := bundle.Register(); err != nil {
		panic(fmt.Sprintf("register i18n catalogs: %v", err))
	}
	return bundle
}

func load(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob catalogs: %w", err)
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]*LocaleCatalog{}}
	for _, path := range paths {
		data, err := fs.ReadFile(catalogFS, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var parsed catalogFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := bundle.addFile(path, parsed); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

func (b *Bundle) addFile(path string, file catalogFile) error {
	locale := strings.TrimSpace(file.Locale)
	namespace := strings.TrimSpace(file.Namespace)
	if locale == "" {
		return fmt.Errorf("catalog %s is missing a locale", path)
	}
	if namespace == "" {
		return fmt.Errorf("catalog %s is missing a namespace", path)
	}
	entry, ok := b.locales[locale]
	if !ok {
		entry = &LocaleCatalog{Locale: locale, Namespaces: map[string]map[string]string{}}
		b.locales[locale] = entry
	}
	if _, exists := entry.Namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s redefines namespace %s for %s", path, namespace, locale)
	}
	entry.Namespaces[namespace] = file.Messages
	return nil
}

// Register installs every message into the x/text default catalog so message
// printers resolve them by key.
func (b *Bundle) Register() error {
	for locale, entry := range b.locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		for namespace, messages := range entry.Namespaces {
			for key, value := range messages {
				fullKey := namespace + "." + key
				if err := message.SetString(tag, fullKey, value); err != nil {
					return fmt.Errorf("register %s %s: %w", locale, fullKey, err)
				}
			}
		}
	}
	return nil
}

// Locales returns the loaded locale names in sorted order.
func (b *Bundle) Locales() []string {
	names := make([]string, 0, len(b.locales))
	for name := range b.locales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the raw message for a locale, namespace, and key.
func (b *Bundle) Lookup(locale, namespace, key string) (string, bool) {
	entry, ok := b.locales[locale]
	if !ok {
		return "", false
	}
	messages, ok := entry.Namespaces[namespace]
	if !ok {
		return "", false
	}
	value, ok := messages[key]
	return value, ok
}
