package subtitle

import (
	"fmt"
	"strings"
)

const (
	dialogueTag    = "Dialogue:"
	dialogueFields = 10
	eventsSection  = "[events]"
	formatTag      = "Format:"

	noticeStart = "0:00:00.00"
	noticeEnd   = "0:00:05.00"
	noticeStyle = "Default"
)

// Parse splits text into raw lines and derives the dialogue view.
// Lines starting with "Dialogue:" that split into fewer than ten fields are not dialogue.
func Parse(text string) *Document {
	lines := strings.Split(text, "\n")
	doc := &Document{Lines: lines}
	for i, line := range lines {
		if d, ok := parseDialogue(i, line); ok {
			doc.Dialogue = append(doc.Dialogue, d)
		}
	}
	return doc
}

func parseDialogue(index int, line string) (DialogueLine, bool) {
	if !strings.HasPrefix(line, dialogueTag) {
		return DialogueLine{}, false
	}

	body, eol := line, ""
	if strings.HasSuffix(body, "\r") {
		body, eol = strings.TrimSuffix(body, "\r"), "\r"
	}

	parts := strings.SplitN(body, ",", dialogueFields)
	if len(parts) < dialogueFields {
		return DialogueLine{}, false
	}

	text := parts[dialogueFields-1]
	return DialogueLine{
		Index:   index,
		Layer:   strings.TrimSpace(strings.TrimPrefix(parts[0], dialogueTag)),
		Start:   parts[1],
		End:     parts[2],
		Style:   parts[3],
		Name:    parts[4],
		MarginL: parts[5],
		MarginR: parts[6],
		MarginV: parts[7],
		Effect:  parts[8],
		Text:    text,
		head:    body[:len(body)-len(text)],
		eol:     eol,
	}, true
}

// Render returns a new document where the dialogue line at each raw index in
// translations gets its text field replaced. Lines are addressed by position, so
// two lines sharing the same source text are translated independently.
func (d *Document) Render(translations map[int]string) *Document {
	lines := make([]string, len(d.Lines))
	copy(lines, d.Lines)
	for _, dl := range d.Dialogue {
		if text, ok := translations[dl.Index]; ok {
			lines[dl.Index] = dl.Raw(text)
		}
	}
	return Parse(strings.Join(lines, "\n"))
}

// EventFormatIndex returns the raw index of the "Format:" header of the [Events]
// section, or -1 when the document has none.
func (d *Document) EventFormatIndex() int {
	inEvents := false
	for i, line := range d.Lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			inEvents = strings.EqualFold(trimmed, eventsSection)
			continue
		}
		if inEvents && strings.HasPrefix(trimmed, formatTag) {
			return i
		}
	}
	return -1
}

// Insert returns a new document with line placed at raw position pos.
func (d *Document) Insert(pos int, line string) *Document {
	if pos < 0 {
		pos = 0
	}
	if pos > len(d.Lines) {
		pos = len(d.Lines)
	}
	lines := make([]string, 0, len(d.Lines)+1)
	lines = append(lines, d.Lines[:pos]...)
	lines = append(lines, line)
	lines = append(lines, d.Lines[pos:]...)
	return Parse(strings.Join(lines, "\n"))
}

func (d *Document) String() string {
	return strings.Join(d.Lines, "\n")
}

// Texts returns the dialogue text fields in document order
func (d *Document) Texts() []string {
	ret := make([]string, len(d.Dialogue))
	for i, dl := range d.Dialogue {
		ret[i] = dl.Text
	}
	return ret
}

// Cues returns the dialogue view without the injected translation notice.
func (d *Document) Cues() []Cue {
	ret := make([]Cue, 0, len(d.Dialogue))
	for _, dl := range d.Dialogue {
		if dl.IsNotice() {
			continue
		}
		ret = append(ret, Cue{
			StartTime: dl.Start,
			EndTime:   dl.End,
			Style:     dl.Style,
			Text:      strings.TrimSpace(dl.Text),
		})
	}
	return ret
}

// WithNotice inserts the translation notice right after the [Events] format header,
// ending it like that header so CRLF documents stay CRLF. It reports false and
// returns d unchanged when the document has no such header.
func (d *Document) WithNotice(languageName, product string) (*Document, bool) {
	idx := d.EventFormatIndex()
	if idx < 0 {
		return d, false
	}
	line := NoticeLine(languageName, product)
	if strings.HasSuffix(d.Lines[idx], "\r") {
		line += "\r"
	}
	return d.Insert(idx+1, line), true
}

// NoticeLine builds the synthetic dialogue line announcing the translation.
func NoticeLine(languageName, product string) string {
	return fmt.Sprintf("%s 0,%s,%s,%s,,0,0,0,,Translated to %s by %s",
		dialogueTag, noticeStart, noticeEnd, noticeStyle, languageName, product)
}

// IsNotice reports whether the line was produced by NoticeLine
func (d DialogueLine) IsNotice() bool {
	return d.Start == noticeStart && d.End == noticeEnd && d.Style == noticeStyle &&
		strings.HasPrefix(d.Text, "Translated to ")
}
