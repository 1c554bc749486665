package subtitle

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage picks the language most dialogue lines are written in.
// Override tags and hard line breaks are removed before detection.
func DetectLanguage(doc *Document) language.Tag {
	if doc == nil || len(doc.Dialogue) == 0 {
		return language.Und
	}

	counts := make(map[string]int)
	for _, raw := range doc.Texts() {
		text := plainText(raw)
		if text == "" {
			continue
		}
		info := whatlanggo.Detect(text)
		if !info.IsReliable() && len([]rune(text)) < 12 {
			continue
		}
		counts[info.Lang.Iso6391()]++
	}

	var top string
	var topCount int
	for lang, count := range counts {
		if count > topCount || (count == topCount && lang < top) {
			top = lang
			topCount = count
		}
	}
	if top == "" {
		return language.Und
	}
	return language.Make(top)
}

// plainText strips {...} override blocks and \N / \n / \h escapes
func plainText(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '{':
			depth++
		case r == '}' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	out := strings.NewReplacer(`\N`, " ", `\n`, " ", `\h`, " ").Replace(b.String())
	return strings.TrimSpace(out)
}
