package formatter

import (
	"fmt"
	"html"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/video"
)

const (
	// maxTitleWidth: предел ширины заголовка поста в экранных ячейках.
	maxTitleWidth = 150
	// titleSuffixTemplate: хвост заголовка; его не обрезаем, сокращается название видео.
	titleSuffixTemplate = " — Key Insights & Takeaways (%s)"
	// ellipsis добавляется при обрезке названия.
	ellipsis = "…"
)

// Formatter собирает пост из сгенерированного тела и метаданных видео.
type Formatter struct {
	maxTitleWidth int
}

// NewFormatter создаёт новый экземпляр форматтера.
func NewFormatter() *Formatter {
	return &Formatter{maxTitleWidth: maxTitleWidth}
}

// BuildPost возвращает готовый к публикации пост:
// шапка с источником, встроенный плеер и тело от модели.
func (f *Formatter) BuildPost(niche config.Niche, d video.Detail, body string, labels []string) video.Post {
	var sb strings.Builder
	sb.WriteString(SourceHeader(d))
	sb.WriteString(EmbedHTML(d.ID))
	sb.WriteString(body)

	return video.Post{
		Title:    f.Title(niche.Name, d.Title),
		HTML:     sb.String(),
		Labels:   labels,
		VideoID:  d.ID,
		VideoURL: video.URL(d.ID),
	}
}

// Title формирует заголовок поста, укладываясь в maxTitleWidth.
func (f *Formatter) Title(nicheName, videoTitle string) string {
	suffix := fmt.Sprintf(titleSuffixTemplate, nicheName)
	videoTitle = strings.Join(strings.Fields(videoTitle), " ")

	room := f.maxTitleWidth - runewidth.StringWidth(suffix)
	if room <= runewidth.StringWidth(ellipsis) {
		return runewidth.Truncate(videoTitle+suffix, f.maxTitleWidth, ellipsis)
	}
	return runewidth.Truncate(videoTitle, room, ellipsis) + suffix
}

// SourceHeader: абзац с указанием источника; все поля экранируются.
func SourceHeader(d video.Detail) string {
	published := ""
	if !d.PublishedAt.IsZero() {
		published = d.PublishedAt.Format("2006-01-02")
	}
	return fmt.Sprintf(
		`<p><em>Source video:</em> <strong>%s</strong> by %s — Published on <strong>%s</strong></p>`,
		html.EscapeString(d.Title), html.EscapeString(d.ChannelTitle), html.EscapeString(published))
}

// EmbedHTML возвращает адаптивный iframe плеера.
func EmbedHTML(videoID string) string {
	return fmt.Sprintf(`
<div style="position:relative;padding-bottom:56.25%%;height:0;overflow:hidden;margin:16px 0;">
  <iframe style="position:absolute;top:0;left:0;width:100%%;height:100%%;"
    src="https://www.youtube.com/embed/%s"
    title="YouTube video player" frameborder="0"
    allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture; web-share"
    allowfullscreen></iframe>
</div>
`, html.EscapeString(videoID))
}
