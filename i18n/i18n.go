package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "tablature_lang"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds the supported locales after registration with x/text.
type Catalog struct {
	tags    []language.Tag
	matcher language.Matcher
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default loads and registers the embedded catalogs once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = LoadFromFS(embeddedLocales)
	})
	return defaultCatalog, defaultErr
}

// LoadFromFS reads locales/*.yaml from fsys and registers every message with x/text/message.
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	c := &Catalog{}
	seen := map[string]bool{}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: locale %q: %w", path, file.Locale, err)
		}
		if seen[tag.String()] {
			return nil, fmt.Errorf("catalog %s: locale %s defined twice", path, tag)
		}
		seen[tag.String()] = true

		keys := make([]string, 0, len(file.Messages))
		for key := range file.Messages {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := message.SetString(tag, escapeVerbs(key), escapeVerbs(file.Messages[key])); err != nil {
				return nil, fmt.Errorf("catalog %s: register %q: %w", path, key, err)
			}
		}
		c.tags = append(c.tags, tag)
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// SupportedTags returns the registered locales in catalog file order.
func (c *Catalog) SupportedTags() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Match picks the best supported tag for the preferences, in order.
func (c *Catalog) Match(prefs ...language.Tag) language.Tag {
	_, index, confidence := c.matcher.Match(prefs...)
	if confidence == language.No {
		return language.Und
	}
	return c.tags[index]
}

// ParseTag returns the supported tag closest to value.
func (c *Catalog) ParseTag(value string) (language.Tag, bool) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return language.Und, false
	}
	matched := c.Match(tag)
	return matched, matched != language.Und
}

// Translator resolves source-language phrases for one locale.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// Printer returns a translator for tag. Unknown phrases come back unchanged.
func Printer(tag language.Tag) *Translator {
	return &Translator{tag: tag, printer: message.NewPrinter(tag)}
}

// Translate looks phrase up without arguments; a literal % in the phrase or
// its translation is printed as is.
func (t *Translator) Translate(phrase string) string {
	return t.printer.Sprintf(escapeVerbs(phrase))
}

// escapeVerbs doubles every % so message formatting prints it verbatim.
func escapeVerbs(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

func (t *Translator) Tag() language.Tag {
	return t.tag
}

// ResolveTag picks the language for a request: lang query parameter, then
// cookie, then Accept-Language, then fallback. The bool reports whether the
// query parameter chose it, so the caller can persist it as a cookie.
func (c *Catalog) ResolveTag(r *http.Request, fallback language.Tag) (language.Tag, bool) {
	if r == nil {
		return fallback, false
	}
	if langValue := strings.TrimSpace(r.URL.Query().Get(LangParam)); langValue != "" {
		if tag, ok := c.ParseTag(langValue); ok {
			return tag, true
		}
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := c.ParseTag(cookie.Value); ok {
			return tag, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			if tag := c.Match(tags...); tag != language.Und {
				return tag, false
			}
		}
	}
	return fallback, false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}
