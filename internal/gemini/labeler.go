package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// maxLabels: сколько меток Blogger ставить на пост.
const maxLabels = 3

// Labeler выбирает метки поста из разрешённого списка ниши.
type Labeler struct {
	client GeminiClient
	model  string
}

// NewLabeler создаёт новый экземпляр.
func NewLabeler(client GeminiClient, model string) *Labeler {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Labeler{client: client, model: model}
}

// Label возвращает до трёх меток из allowed. Если модель недоступна или ответила
// не по формату, возвращаются первые метки списка: метки не должны блокировать публикацию.
func (l *Labeler) Label(ctx context.Context, title, body string, allowed []string) []string {
	fallback := firstN(allowed, maxLabels)
	if len(allowed) <= maxLabels {
		return fallback
	}

	prompt := l.buildPrompt(title, truncateRunes(body, 4000), allowed)
	responseText, err := l.client.GenerateText(ctx, l.model, prompt)
	if err != nil {
		log.WithError(err).Warn("label selection failed, using defaults")
		return fallback
	}

	var picked []string
	cleaned := extractJSON(responseText)
	if cleaned == "" {
		log.WithField("raw", responseText).Warn("label response has no JSON array, using defaults")
		return fallback
	}
	if err := json.Unmarshal([]byte(cleaned), &picked); err != nil {
		log.WithError(err).Warn("unmarshal labels, using defaults")
		return fallback
	}

	// Отбрасываем метки, которых нет в списке
	var out []string
	seen := make(map[string]struct{})
	for _, p := range picked {
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSpace(p), a) {
				if _, dup := seen[a]; !dup {
					seen[a] = struct{}{}
					out = append(out, a)
				}
				break
			}
		}
		if len(out) == maxLabels {
			break
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (l *Labeler) buildPrompt(title, body string, allowed []string) string {
	list, _ := json.Marshal(allowed)
	return fmt.Sprintf(`Pick at most %d labels for the blog post below. Use only labels from this list: %s
Return a JSON array of strings and nothing else.

Title: %s

Post:
%s`, maxLabels, list, title, body)
}

// extractJSON достаёт первый JSON-массив из ответа модели, в том числе из блока ```json.
func extractJSON(text string) string {
	text = stripCodeFence(text)
	start := strings.Index(text, "[")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return append([]string(nil), items...)
	}
	return append([]string(nil), items[:n]...)
}
