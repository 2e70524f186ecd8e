package subtitle

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage guesses the dominant language of the given lines by majority
// vote over per-line detection. Returns language.Und when nothing is detected.
func DetectLanguage(lines []Line) language.Tag {
	counts := make(map[string]int)
	for _, line := range lines {
		text := StripStyles(line.Text)
		if text == "" {
			continue
		}
		info := whatlanggo.Detect(text)
		code := info.Lang.Iso6391()
		if code == "" {
			continue
		}
		counts[code]++
	}

	var topLang string
	var topCount int
	for lang, count := range counts {
		if count > topCount || (count == topCount && lang < topLang) {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	tag, err := language.Parse(topLang)
	if err != nil {
		return language.Und
	}
	return tag
}
