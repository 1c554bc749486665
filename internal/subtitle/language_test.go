package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestDetectLanguage(t *testing.T) {
	doc := Parse(`[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,{\i1}I have never seen anything like this in my whole life.{\i0}
Dialogue: 0,0:00:03.00,0:00:04.00,Default,,0,0,0,,We should leave before the storm reaches the village.
Dialogue: 0,0:00:05.00,0:00:06.00,Default,,0,0,0,,Привет, как у тебя сегодня дела на работе?`)

	assert.Equal(t, language.English, DetectLanguage(doc))
}

func TestDetectLanguage_Empty(t *testing.T) {
	assert.Equal(t, language.Und, DetectLanguage(Parse("[Events]\n")))
	assert.Equal(t, language.Und, DetectLanguage(nil))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Hello world", plainText(`{\an8}Hello\Nworld`))
	assert.Equal(t, "", plainText(`{\pos(1,2)}`))
}
