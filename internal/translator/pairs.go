package translator

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnsupportedLanguage is returned for pair codes outside the supported table.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Pair is a supported source-target language pair, e.g. "en-fr".
type Pair struct {
	Code   string
	Source language.Tag
	Target language.Tag
}

var pairs = []Pair{
	{Code: "en-cs", Source: language.English, Target: language.Czech},
	{Code: "en-de", Source: language.English, Target: language.German},
	{Code: "en-fr", Source: language.English, Target: language.French},
	{Code: "en-es", Source: language.English, Target: language.Spanish},
	{Code: "en-it", Source: language.English, Target: language.Italian},
	{Code: "en-pl", Source: language.English, Target: language.Polish},
	{Code: "en-ru", Source: language.English, Target: language.Russian},
}

// ParsePair looks code up in the supported table.
func ParsePair(code string) (Pair, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	for _, p := range pairs {
		if p.Code == normalized {
			return p, nil
		}
	}
	return Pair{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
}

// Codes lists the supported pair codes in table order
func Codes() []string {
	ret := make([]string, len(pairs))
	for i, p := range pairs {
		ret[i] = p.Code
	}
	return ret
}

// TargetName is the English name of the target language, e.g. "French".
func (p Pair) TargetName() string {
	return display.English.Languages().Name(p.Target)
}

// SourceName is the English name of the source language
func (p Pair) SourceName() string {
	return display.English.Languages().Name(p.Source)
}

// OpusMTModel is the Helsinki-NLP model serving this pair
func (p Pair) OpusMTModel() string {
	return "Helsinki-NLP/opus-mt-" + p.Code
}
