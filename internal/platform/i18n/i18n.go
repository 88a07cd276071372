// Package i18n defines the supported locales and language matching rules.
package i18n

import "golang.org/x/text/language"

var supported = []language.Tag{
	language.MustParse("en-US"),
	language.MustParse("pt-BR"),
}

var matcher = language.NewMatcher(supported)

// SupportedTags returns the supported language tags, default first.
func SupportedTags() []language.Tag {
	tags := make([]language.Tag, len(supported))
	copy(tags, supported)
	return tags
}

// DefaultTag returns the default language tag.
func DefaultTag() language.Tag {
	return supported[0]
}

// ParseTag parses value into a supported tag. The bool reports whether the
// value matched a supported locale exactly enough to honor it.
func ParseTag(value string) (language.Tag, bool) {
	tag, err := language.Parse(value)
	if err != nil {
		return DefaultTag(), false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return DefaultTag(), false
	}
	return supported[index], true
}

// MatchTags picks the best supported tag for the preference list.
func MatchTags(preferred []language.Tag) language.Tag {
	_, index, confidence := matcher.Match(preferred...)
	if confidence == language.No {
		return DefaultTag()
	}
	return supported[index]
}
