package feedback

import (
	"fmt"
	"strings"
)

// Locale is the language feedback is written in.
type Locale string

const (
	LocaleNorwegian Locale = "no"
	LocaleEnglish   Locale = "en"
	LocaleGerman    Locale = "de"
)

// Locales lists the supported locales, default first.
func Locales() []string {
	return []string{string(LocaleNorwegian), string(LocaleEnglish), string(LocaleGerman)}
}

// ParseLocale accepts a locale name in any case.
func ParseLocale(s string) (Locale, error) {
	switch l := Locale(strings.ToLower(strings.TrimSpace(s))); l {
	case LocaleNorwegian, LocaleEnglish, LocaleGerman:
		return l, nil
	}
	return "", fmt.Errorf("unsupported locale %q", s)
}

// Address controls how students are addressed in generated text.
type Address struct {
	Locale Locale
	// Plural is set for group submissions.
	Plural bool
}

// PromptPart is the language instruction appended to the system prompt.
func (a Address) PromptPart() string {
	var b strings.Builder
	switch a.Locale {
	case LocaleNorwegian:
		b.WriteString("Write your feedback in Norwegian!")
	case LocaleEnglish:
		b.WriteString("Write your feedback in English.")
	case LocaleGerman:
		b.WriteString("Write your feedback in German.")
	}
	b.WriteString("\n")
	if a.Plural {
		b.WriteString("Address the students in plural.")
	}
	return b.String()
}

// Pronoun is the second-person pronoun for the locale.
func (a Address) Pronoun() string {
	switch a.Locale {
	case LocaleEnglish:
		return "You"
	case LocaleNorwegian:
		if a.Plural {
			return "Dere"
		}
		return "Du"
	case LocaleGerman:
		if a.Plural {
			return "Ihr"
		}
		return "Du"
	}
	return ""
}

// SeeAlso points students at the published feedback.
func (a Address) SeeAlso(link string) string {
	switch a.Locale {
	case LocaleEnglish:
		return "See more details at: " + link
	case LocaleGerman:
		return "Mehr Informationen hier: " + link
	default:
		return "Se flere detaljer her: " + link
	}
}

// IssueAddendum is appended to feedback published as a GitHub issue.
func (a Address) IssueAddendum() string {
	p := a.Pronoun()
	switch a.Locale {
	case LocaleNorwegian:
		return p + ` kan bare _lukke_ dette "issue" som _løst_ når ` + strings.ToLower(p) + " har lest gjennom den :wink:"
	case LocaleEnglish:
		return `You can just _close_ this "issue" as _completed_ when you have read through the comments :wink:`
	case LocaleGerman:
		if a.Plural {
			return p + ` könnt diesen "issue" als _fertig_ abschliessen wenn ` + strings.ToLower(p) + " die Kommentare durchgelesen habt :wink:"
		}
		return p + ` kannst diesen "issue" als _fertig_ abschliessen wenn ` + strings.ToLower(p) + " die Kommentare durchgelesen hast :wink:"
	}
	return ""
}
