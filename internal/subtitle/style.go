package subtitle

import "strings"

// Style flags carried by a cue's text markup.
type Style struct {
	Bold      bool `json:"bold"`
	Italic    bool `json:"italic"`
	Underline bool `json:"underline"`
}

var styleTags = []struct {
	tag string
	set func(*Style)
	get func(Style) bool
}{
	{"b", func(s *Style) { s.Bold = true }, func(s Style) bool { return s.Bold }},
	{"i", func(s *Style) { s.Italic = true }, func(s Style) bool { return s.Italic }},
	{"u", func(s *Style) { s.Underline = true }, func(s Style) bool { return s.Underline }},
}

// ParseStyledText peels <b>, <i> and <u> wrappers enclosing the whole text,
// in any nesting order, and returns the bare text with the collected style.
func ParseStyledText(text string) (string, Style) {
	var style Style
	for {
		peeled := false
		for _, st := range styleTags {
			open, closing := "<"+st.tag+">", "</"+st.tag+">"
			if len(text) >= len(open)+len(closing) && strings.HasPrefix(text, open) && strings.HasSuffix(text, closing) {
				text = text[len(open) : len(text)-len(closing)]
				st.set(&style)
				peeled = true
			}
		}
		if !peeled {
			return text, style
		}
	}
}

// WrapStyledText is the inverse of ParseStyledText. Tags nest as <b><i><u>.
func WrapStyledText(text string, style Style) string {
	for i := len(styleTags) - 1; i >= 0; i-- {
		st := styleTags[i]
		if st.get(style) {
			text = "<" + st.tag + ">" + text + "</" + st.tag + ">"
		}
	}
	return text
}

// StripStyles removes whole-text style wrappers.
func StripStyles(text string) string {
	bare, _ := ParseStyledText(text)
	return bare
}
