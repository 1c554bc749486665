package subtitle

import "strings"

// DialogueLine is one "Dialogue:" event of an ASS document.
// Text is everything after the ninth comma and is never re-split.
type DialogueLine struct {
	Index   int // position of the raw line in Document.Lines
	Layer   string
	Start   string
	End     string
	Style   string
	Name    string
	MarginL string
	MarginR string
	MarginV string
	Effect  string
	Text    string

	head string // raw line up to and including the ninth comma
	eol  string // trailing "\r" of CRLF files
}

var lineBreaks = strings.NewReplacer("\r\n", `\N`, "\n", `\N`, "\r", `\N`)

// Raw rebuilds the source line with text in place of the original text field.
// Newlines in text become \N so the result stays one raw line.
func (d DialogueLine) Raw(text string) string {
	return d.head + lineBreaks.Replace(text) + d.eol
}

// Document is an ASS file as an ordered list of raw lines.
// Dialogue is a filtered view over Lines; every other line is passed through untouched.
type Document struct {
	Lines    []string
	Dialogue []DialogueLine
}

// Cue is the JSON shape of a dialogue line returned to API clients
type Cue struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Style     string `json:"style"`
	Text      string `json:"text"`
}
