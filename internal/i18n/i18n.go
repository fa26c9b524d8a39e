// Package i18n provides localized labels for session phases, pipeline stages
// and error suggestions. Message catalogs are embedded TOML files.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"launcherd/internal/domain"
)

//go:embed locales/*.toml
var catalogFS embed.FS

// Catalog resolves client language preferences to one of the embedded
// locales and renders messages in it.
type Catalog struct {
	bundle    *i18n.Bundle
	supported []language.Tag
	matcher   language.Matcher
	fallback  language.Tag

	mu         sync.Mutex
	localizers map[language.Tag]*i18n.Localizer
}

// New loads the embedded catalogs. fallback is used when no preference
// matches; it must be one of the embedded locales.
func New(fallback string) (*Catalog, error) {
	return load(catalogFS, fallback)
}

func load(fsys fs.FS, fallback string) (*Catalog, error) {
	fb, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("parse default locale %q: %w", fallback, err)
	}

	bundle := i18n.NewBundle(fb)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	paths, err := fs.Glob(fsys, "locales/*.toml")
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if _, err := bundle.LoadMessageFileFS(fsys, path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	supported := bundle.LanguageTags()
	found := false
	for _, tag := range supported {
		if tag == fb {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("default locale %q has no catalog", fallback)
	}

	// The matcher prefers its first tag when nothing matches.
	ordered := append([]language.Tag{fb}, without(supported, fb)...)
	return &Catalog{
		bundle:     bundle,
		supported:  ordered,
		matcher:    language.NewMatcher(ordered),
		fallback:   fb,
		localizers: make(map[language.Tag]*i18n.Localizer),
	}, nil
}

func without(tags []language.Tag, drop language.Tag) []language.Tag {
	out := make([]language.Tag, 0, len(tags))
	for _, t := range tags {
		if t != drop {
			out = append(out, t)
		}
	}
	return out
}

// Match picks the best supported locale for an Accept-Language header value
// or a bare tag such as "ru".
func (c *Catalog) Match(pref string) language.Tag {
	if pref == "" {
		return c.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(pref)
	if err != nil || len(tags) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return c.fallback
	}
	return c.supported[idx]
}

func (c *Catalog) Supported() []language.Tag {
	return append([]language.Tag(nil), c.supported...)
}

func (c *Catalog) PhaseLabel(tag language.Tag, p domain.Phase) string {
	return c.message(tag, "phase_"+string(p), string(p))
}

// StageLabel returns "" for domain.StageNone.
func (c *Catalog) StageLabel(tag language.Tag, s domain.Stage) string {
	if s == domain.StageNone {
		return ""
	}
	return c.message(tag, "stage_"+string(s), string(s))
}

func (c *Catalog) ErrorSuggestion(tag language.Tag, kind domain.ErrorKind) string {
	return c.message(tag, "error_"+string(kind), c.message(tag, "error_Unknown", ""))
}

func (c *Catalog) message(tag language.Tag, id, fallback string) string {
	msg, err := c.localizer(tag).Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}

func (c *Catalog) localizer(tag language.Tag) *i18n.Localizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.localizers[tag]; ok {
		return l
	}
	l := i18n.NewLocalizer(c.bundle, tag.String(), c.fallback.String())
	c.localizers[tag] = l
	return l
}
