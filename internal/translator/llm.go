package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/nottranslate-api/internal/llm"
)

type chatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// LLMFactory returns providers that translate through a chat completion model.
func LLMFactory(client *llm.Client) Factory {
	return llmFactory(client)
}

func llmFactory(client chatClient) Factory {
	return func(_ context.Context, pair Pair) (Provider, error) {
		return &llmProvider{client: client, prompt: buildSystemPrompt(pair)}, nil
	}
}

type llmProvider struct {
	client chatClient
	prompt string
}

func (p *llmProvider) Translate(ctx context.Context, text string) (string, error) {
	out, err := p.client.SimpleChat(ctx, text, p.prompt)
	if err != nil {
		return "", fmt.Errorf("llm translation failed: %w", err)
	}
	out = cleanReply(out)
	if out == "" {
		return "", fmt.Errorf("llm returned an empty translation")
	}
	return fixHardBreaks(text, out), nil
}

func buildSystemPrompt(pair Pair) string {
	var prompt strings.Builder
	prompt.WriteString("You are a professional subtitle translator. Translate the subtitle line from ")
	prompt.WriteString(pair.SourceName())
	prompt.WriteString(" to ")
	prompt.WriteString(pair.TargetName())
	prompt.WriteString(".\n\n")
	prompt.WriteString("Rules:\n")
	prompt.WriteString("1. Keep ASS override tags such as {\\i1} and {\\an8} exactly as they are, at the same positions\n")
	prompt.WriteString("2. Keep every \\N hard line break; output the same number of \\N markers\n")
	prompt.WriteString("3. Do not add quotes, notes or explanations\n")
	prompt.WriteString("Return ONLY the translated line.")
	return prompt.String()
}

// cleanReply drops surrounding whitespace, code fences and wrapping quotes
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// fixHardBreaks makes the translation carry as many \N markers as the source.
// Real newlines become \N; missing markers are appended at word boundaries near
// the proportional positions, extra markers are turned into spaces.
func fixHardBreaks(source, translated string) string {
	translated = strings.ReplaceAll(translated, "\r\n", `\N`)
	translated = strings.ReplaceAll(translated, "\n", `\N`)

	want := strings.Count(source, `\N`)
	got := strings.Count(translated, `\N`)
	switch {
	case got == want:
		return translated
	case got > want:
		parts := strings.Split(translated, `\N`)
		keep := strings.Join(parts[:want+1], `\N`)
		return keep + " " + strings.Join(parts[want+1:], " ")
	}

	words := strings.Fields(strings.ReplaceAll(translated, `\N`, " "))
	if len(words) <= want {
		return strings.Join(words, `\N`)
	}
	var b strings.Builder
	inserted := 0
	for i, w := range words {
		if i > 0 {
			if inserted < want && i*(want+1) >= (inserted+1)*len(words) {
				b.WriteString(`\N`)
				inserted++
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(w)
	}
	return b.String()
}
