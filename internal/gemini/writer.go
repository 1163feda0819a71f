package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// maxTranscriptRunes ограничивает размер транскрипта в промпте.
const maxTranscriptRunes = 60000

// ErrEmptyPost: модель вернула пустой ответ.
var ErrEmptyPost = errors.New("model returned empty post")

// PostRequest: исходные данные для генерации поста.
type PostRequest struct {
	Niche      config.Niche
	Video      video.Detail
	Transcript string
	MinWords   int
}

// Writer превращает транскрипт видео в HTML-тело поста.
type Writer struct {
	client GeminiClient
	model  string
}

// NewWriter создаёт новый экземпляр.
func NewWriter(client GeminiClient, cfg config.Gemini) *Writer {
	model := cfg.ModelPost
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Writer{client: client, model: model}
}

// Write генерирует HTML тела поста (без заголовка и встраивания видео).
func (w *Writer) Write(ctx context.Context, req PostRequest) (string, error) {
	prompt := w.buildPrompt(req)
	log.WithFields(log.Fields{
		"video_id":     req.Video.ID,
		"model":        w.model,
		"prompt_runes": len([]rune(prompt)),
	}).Info("Generating blog post")

	responseText, err := w.client.GenerateText(ctx, w.model, prompt)
	if err != nil {
		return "", fmt.Errorf("generate post for %s: %w", req.Video.ID, err)
	}

	body := stripCodeFence(responseText)
	if body == "" {
		return "", fmt.Errorf("%w: video %s", ErrEmptyPost, req.Video.ID)
	}
	return body, nil
}

func (w *Writer) buildPrompt(req PostRequest) string {
	var offers strings.Builder
	for _, o := range req.Niche.Offers {
		fmt.Fprintf(&offers, "- %s: %s\n", o.Name, o.URL)
	}
	if offers.Len() == 0 {
		offers.WriteString("- (none)\n")
	}

	var ctas strings.Builder
	for _, c := range req.Niche.SoftCTAs {
		fmt.Fprintf(&ctas, "- %s\n", c)
	}
	if ctas.Len() == 0 {
		ctas.WriteString("- (none)\n")
	}

	minWords := req.MinWords
	if minWords <= 0 {
		minWords = 800
	}

	published := ""
	if !req.Video.PublishedAt.IsZero() {
		published = req.Video.PublishedAt.Format("2006-01-02")
	}

	return fmt.Sprintf(`You are an expert %s content editor. Transform the following YouTube transcript into a clear, well-structured, ORIGINAL blog post for readers.

Requirements:
- At least %d words, written in English.
- Output HTML only (h2/h3 headings, paragraphs, lists). No <html>, <head> or <body> tags and no markdown.
- Do not copy the transcript verbatim; summarize, restructure and add practical takeaways.
- Credit the source video naturally in the text.
- Where relevant, weave in at most one soft call to action and link the offers below with rel="nofollow sponsored".
- Do not invent facts that are not supported by the transcript.

Source video: "%s" by %s, published %s.

Soft calls to action:
%s
Offers:
%s
Transcript:
%s`,
		req.Niche.Name, minWords,
		req.Video.Title, req.Video.ChannelTitle, published,
		ctas.String(), offers.String(),
		truncateRunes(req.Transcript, maxTranscriptRunes))
}

// stripCodeFence снимает обёртку ```html ... ```, которую модели иногда добавляют.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Пропускаем указание языка до конца строки
	if nl := strings.IndexByte(text, '\n'); nl != -1 {
		text = text[nl+1:]
	} else {
		text = ""
	}
	if end := strings.LastIndex(text, "```"); end != -1 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
