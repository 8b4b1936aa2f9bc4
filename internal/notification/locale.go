package notification

import (
	"strings"

	"golang.org/x/text/language"
)

var supportedTags = []language.Tag{
	language.English,
	language.Finnish,
	language.Swedish,
}

var tagMatcher = language.NewMatcher(supportedTags)

// LocaleResolver picks the notification language for a member.
type LocaleResolver struct {
	fallback language.Tag
}

// NewLocaleResolver uses defaultLocale when a member has no usable
// preference. An unsupported default falls back to English.
func NewLocaleResolver(defaultLocale string) *LocaleResolver {
	fallback, ok := match(defaultLocale)
	if !ok {
		fallback = language.English
	}
	return &LocaleResolver{fallback: fallback}
}

// Resolve returns the supported tag closest to preference, or the default.
func (r *LocaleResolver) Resolve(preference string) language.Tag {
	if tag, ok := match(preference); ok {
		return tag
	}
	return r.fallback
}

func (r *LocaleResolver) Default() language.Tag {
	return r.fallback
}

func match(value string) (language.Tag, bool) {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", "-"))
	if value == "" {
		return language.Und, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, false
	}
	_, index, confidence := tagMatcher.Match(tag)
	if confidence == language.No {
		return language.Und, false
	}
	return supportedTags[index], true
}
