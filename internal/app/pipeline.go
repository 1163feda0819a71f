package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/gemini"
	"github.com/maine/youtube_blog_worker/internal/selection"
	"github.com/maine/youtube_blog_worker/internal/state"
	"github.com/maine/youtube_blog_worker/internal/transcript"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// ErrNotConfigured возвращается, когда пайплайн запущен без обязательных зависимостей.
var ErrNotConfigured = errors.New("pipeline dependencies not configured")

// ErrUnknownNiche: ниша из NICHE не найдена в конфиге.
var ErrUnknownNiche = errors.New("unknown niche")

// Clock определяет источник времени (удобно подменять в тестах).
type Clock func() time.Time

// Selector выбирает лучшее видео ниши.
type Selector interface {
	Rank(ctx context.Context, keywords []string, exclude map[string]struct{}) selection.Result
}

// DetailFetcher загружает актуальные детали видео (для обновления устаревших записей).
type DetailFetcher interface {
	FetchDetails(ctx context.Context, ids []string) map[string]video.Detail
}

// Scorer пересчитывает оценку по деталям.
type Scorer interface {
	ScoreDetail(d video.Detail) video.Score
}

// TranscriptSource возвращает текст субтитров видео.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// Writer превращает транскрипт в HTML тела поста.
type Writer interface {
	Write(ctx context.Context, req gemini.PostRequest) (string, error)
}

// Labeler подбирает метки поста.
type Labeler interface {
	Label(ctx context.Context, title, body string, allowed []string) []string
}

// Formatter собирает итоговый пост.
type Formatter interface {
	BuildPost(niche config.Niche, d video.Detail, body string, labels []string) video.Post
}

// Publisher публикует пост и возвращает его id.
type Publisher interface {
	Publish(ctx context.Context, post video.Post) (string, error)
}

// HistoryStore: история использованных видео.
type HistoryStore interface {
	StaleIDs(niche string, refreshDays int) []string
	Touch(id string, score float64) bool
	NicheDue(niche string, refreshDays int) bool
	ExcludeSet() map[string]struct{}
	MarkUsed(id, niche, tier string, score float64, postID string)
	MarkNicheRun(niche string)
	Flush(ctx context.Context) error
}

// Options: флаги запуска из окружения.
type Options struct {
	Niche      string // Только эта ниша, без проверки расписания
	ForceRun   bool   // Игнорировать расписание уровней
	SkipWriter bool   // Публиковать транскрипт без генерации текста
}

// PipelineDeps перечисляет зависимости пайплайна.
type PipelineDeps struct {
	Config      config.Root
	Options     Options
	Selector    Selector
	Details     DetailFetcher
	Scorer      Scorer
	Transcripts TranscriptSource
	Writer      Writer
	Labeler     Labeler
	Formatter   Formatter
	Publisher   Publisher
	Store       HistoryStore
	Clock       Clock
	NewRunID    func() string
}

// Pipeline инкапсулирует один запуск: все ниши, которым пора публиковать.
type Pipeline struct {
	cfg         config.Root
	opts        Options
	selector    Selector
	details     DetailFetcher
	scorer      Scorer
	transcripts TranscriptSource
	writer      Writer
	labeler     Labeler
	formatter   Formatter
	publisher   Publisher
	store       HistoryStore
	clock       Clock
	newRunID    func() string
}

// NewPipeline создаёт новый экземпляр пайплайна.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}

	return &Pipeline{
		cfg:         deps.Config,
		opts:        deps.Options,
		selector:    deps.Selector,
		details:     deps.Details,
		scorer:      deps.Scorer,
		transcripts: deps.Transcripts,
		writer:      deps.Writer,
		labeler:     deps.Labeler,
		formatter:   deps.Formatter,
		publisher:   deps.Publisher,
		store:       deps.Store,
		clock:       clock,
		newRunID:    newRunID,
	}
}

// Run обрабатывает ниши по очереди. Ошибка одной ниши не останавливает остальные
// и попадает в отчёт; ошибкой Run возвращает только неверную настройку.
func (p *Pipeline) Run(ctx context.Context) (video.RunReport, error) {
	report := video.RunReport{
		RunID:      p.newRunID(),
		StartedAt:  p.clock().UTC(),
		StateSaved: true,
	}
	if err := p.validateDeps(); err != nil {
		return report, err
	}

	niches, forced, err := p.niches()
	if err != nil {
		return report, err
	}

	runLog := log.WithField("run_id", report.RunID)
	runLog.WithField("niches", len(niches)).Info("Run started")

	for _, niche := range niches {
		if ctx.Err() != nil {
			report.Niches = append(report.Niches, video.NicheOutcome{
				Niche: niche.Key, Status: video.StatusError, Error: ctx.Err().Error(),
			})
			continue
		}

		outcome := p.runNiche(ctx, niche, forced)
		report.Niches = append(report.Niches, outcome)

		if outcome.Status == video.StatusNotDue {
			continue
		}
		if err := p.store.Flush(ctx); err != nil {
			report.StateSaved = false
			entry := runLog.WithField("niche", niche.Key).WithError(err)
			if errors.Is(err, state.ErrWriteDeferred) {
				entry.Warn("History write deferred to next run")
			} else {
				entry.Error("History write failed")
			}
		}
	}

	report.FinishedAt = p.clock().UTC()
	for _, o := range report.Niches {
		runLog.WithFields(log.Fields{
			"niche":    o.Niche,
			"status":   o.Status,
			"video_id": o.VideoID,
			"post_id":  o.PostID,
		}).Info("Niche finished")
	}
	return report, nil
}

func (p *Pipeline) validateDeps() error {
	// writer опционален только в режиме SkipWriter, labeler опционален всегда
	switch {
	case p.selector == nil,
		p.transcripts == nil,
		p.formatter == nil,
		p.publisher == nil,
		p.store == nil,
		p.writer == nil && !p.opts.SkipWriter:
		return ErrNotConfigured
	default:
		return nil
	}
}

// niches возвращает список ниш к обработке и признак принудительного запуска.
func (p *Pipeline) niches() ([]config.Niche, bool, error) {
	if p.opts.Niche != "" {
		n, ok := p.cfg.FindNiche(p.opts.Niche)
		if !ok {
			return nil, false, fmt.Errorf("%w: %q", ErrUnknownNiche, p.opts.Niche)
		}
		return []config.Niche{n}, true, nil
	}
	return p.cfg.Niches, p.opts.ForceRun, nil
}

func (p *Pipeline) runNiche(ctx context.Context, niche config.Niche, forced bool) video.NicheOutcome {
	out := video.NicheOutcome{Niche: niche.Key}
	tierDays := p.cfg.TierDays(niche.Tier)
	nlog := log.WithFields(log.Fields{"niche": niche.Key, "tier": niche.Tier})

	if !forced && !p.store.NicheDue(niche.Key, tierDays) {
		nlog.Info("Niche not due yet, skipping")
		out.Status = video.StatusNotDue
		return out
	}

	nlog.Info("Step 1: Refreshing stale history records...")
	p.refreshStale(ctx, niche, tierDays)

	nlog.Info("Step 2: Selecting candidates...")
	res := p.selector.Rank(ctx, niche.Keywords, p.store.ExcludeSet())
	out.Considered = res.Considered
	nlog.WithFields(log.Fields{
		"considered": res.Considered,
		"qualifying": len(res.Ranked),
		"passes":     res.Passes,
	}).Info("Selection finished")
	if !res.Found {
		out.Status = video.StatusNothingAvailable
		return out
	}

	nlog.Info("Step 3: Looking for a usable transcript...")
	chosen, text, ok := p.pickWithTranscript(ctx, res.Ranked)
	if !ok {
		out.Status = video.StatusNothingAvailable
		return out
	}
	out.VideoID = chosen.Detail.ID
	out.Score = chosen.Score.Final

	nlog.Info("Step 4: Writing post body...")
	body, err := p.body(ctx, niche, chosen, text)
	if err != nil {
		return failed(out, nlog, err)
	}

	labels := firstLabels(niche.Labels)
	if p.labeler != nil {
		labels = p.labeler.Label(ctx, chosen.Detail.Title, body, niche.Labels)
	}
	post := p.formatter.BuildPost(niche, chosen.Detail, body, labels)

	nlog.Info("Step 5: Publishing post...")
	postID, err := p.publisher.Publish(ctx, post)
	if err != nil {
		return failed(out, nlog, err)
	}

	p.store.MarkUsed(chosen.Detail.ID, niche.Key, niche.Tier, chosen.Score.Final, postID)
	p.store.MarkNicheRun(niche.Key)
	out.PostID = postID
	out.Status = video.StatusPosted
	return out
}

// refreshStale перезапрашивает детали устаревших записей ниши и обновляет их оценку.
func (p *Pipeline) refreshStale(ctx context.Context, niche config.Niche, tierDays int) {
	if p.details == nil || p.scorer == nil {
		return
	}
	ids := p.store.StaleIDs(niche.Key, tierDays)
	if len(ids) == 0 {
		return
	}

	details := p.details.FetchDetails(ctx, ids)
	refreshed := 0
	for _, id := range ids {
		d, ok := details[id]
		if !ok {
			continue
		}
		if p.store.Touch(id, p.scorer.ScoreDetail(d).Final) {
			refreshed++
		}
	}
	log.WithFields(log.Fields{"niche": niche.Key, "stale": len(ids), "refreshed": refreshed}).Info("Stale history refreshed")
}

// pickWithTranscript идёт по рейтингу и возвращает первого кандидата с подходящими субтитрами.
func (p *Pipeline) pickWithTranscript(ctx context.Context, ranked []video.Scored) (video.Scored, string, bool) {
	tries := p.cfg.Pipeline.MaxTranscriptTries
	if tries <= 0 {
		tries = 5
	}
	for _, cand := range ranked[:min(tries, len(ranked))] {
		if ctx.Err() != nil {
			break
		}
		vlog := log.WithField("video_id", cand.Detail.ID)

		text, err := p.transcripts.Fetch(ctx, cand.Detail.ID)
		if err != nil {
			if errors.Is(err, transcript.ErrNotAvailable) {
				vlog.Debug("No English transcript")
			} else {
				vlog.WithError(err).Warn("transcript fetch failed")
			}
			continue
		}
		if !transcript.Qualify(text, p.cfg.Pipeline.MinBlogWords) {
			vlog.Debug("Transcript too short or not English")
			continue
		}
		return cand, text, true
	}
	return video.Scored{}, "", false
}

func (p *Pipeline) body(ctx context.Context, niche config.Niche, chosen video.Scored, text string) (string, error) {
	if p.opts.SkipWriter || p.writer == nil {
		return transcriptHTML(text), nil
	}
	return p.writer.Write(ctx, gemini.PostRequest{
		Niche:      niche,
		Video:      chosen.Detail,
		Transcript: text,
		MinWords:   p.cfg.Pipeline.MinBlogWords,
	})
}

// transcriptHTML оформляет сырой транскрипт абзацами примерно по 120 слов.
func transcriptHTML(text string) string {
	const wordsPerParagraph = 120
	words := strings.Fields(text)

	var sb strings.Builder
	for start := 0; start < len(words); start += wordsPerParagraph {
		end := min(start+wordsPerParagraph, len(words))
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(strings.Join(words[start:end], " ")))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}

// firstLabels возвращает копию: метки поста не должны делить память с конфигом.
func firstLabels(labels []string) []string {
	return append([]string(nil), labels[:min(3, len(labels))]...)
}

func failed(out video.NicheOutcome, entry *log.Entry, err error) video.NicheOutcome {
	entry.WithError(err).Error("Niche failed")
	out.Status = video.StatusError
	out.Error = err.Error()
	return out
}
