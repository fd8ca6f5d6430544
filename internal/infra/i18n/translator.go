package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = langCode
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

func (t *Translator) Lang() string { return t.lang }

// T returns the message for key, or key itself when it is missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Catalog holds one translator per language and picks one for a request.
// The first language is the fallback.
type Catalog struct {
	tags    []language.Tag
	byTag   map[language.Tag]*Translator
	matcher language.Matcher
}

func NewCatalog(fsys fs.FS, langs ...string) (*Catalog, error) {
	if len(langs) == 0 {
		return nil, errors.New("i18n: at least one language required")
	}
	c := &Catalog{byTag: map[language.Tag]*Translator{}}
	for _, code := range langs {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("i18n: %s: %w", code, err)
		}
		tr, err := NewTranslator(fsys, code)
		if err != nil {
			return nil, err
		}
		c.tags = append(c.tags, tag)
		c.byTag[tag] = tr
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Pick returns the best translator for an Accept-Language header value.
func (c *Catalog) Pick(acceptLanguage string) *Translator {
	wanted, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(wanted) == 0 {
		return c.byTag[c.tags[0]]
	}
	_, idx, _ := c.matcher.Match(wanted...)
	return c.byTag[c.tags[idx]]
}
