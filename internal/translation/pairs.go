package translation

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguagePair is a supported (source, target) direction of the translation service.
type LanguagePair [2]string

func (p LanguagePair) Source() string { return p[0] }
func (p LanguagePair) Target() string { return p[1] }

// FilterPairs keeps the pairs whose both languages are in allowed. An empty
// allow-list keeps everything.
func FilterPairs(pairs []LanguagePair, allowed []string) []LanguagePair {
	ret := make([]LanguagePair, 0, len(pairs))
	for _, p := range pairs {
		if len(allowed) > 0 && (!containsLanguage(allowed, p.Source()) || !containsLanguage(allowed, p.Target())) {
			continue
		}
		ret = append(ret, p)
	}
	return ret
}

// TargetsFor lists the targets reachable from source, sorted.
func TargetsFor(pairs []LanguagePair, source string) []string {
	var ret []string
	for _, p := range pairs {
		if sameLanguage(p.Source(), source) && !slices.Contains(ret, p.Target()) {
			ret = append(ret, p.Target())
		}
	}
	sort.Strings(ret)
	return ret
}

// LanguageLabels maps every code used by pairs to its English display name.
// Unknown codes map to themselves.
func LanguageLabels(pairs []LanguagePair) map[string]string {
	labels := make(map[string]string)
	for _, p := range pairs {
		for _, code := range p {
			if _, ok := labels[code]; !ok {
				labels[code] = LanguageLabel(code)
			}
		}
	}
	return labels
}

func LanguageLabel(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

func containsLanguage(list []string, code string) bool {
	for _, candidate := range list {
		if sameLanguage(candidate, code) {
			return true
		}
	}
	return false
}

func sameLanguage(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
