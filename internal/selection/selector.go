// Package selection находит лучшее ещё не использованное видео для ниши.
package selection

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/filter"
	"github.com/maine/youtube_blog_worker/internal/ranking"
	"github.com/maine/youtube_blog_worker/internal/retry"
	"github.com/maine/youtube_blog_worker/internal/scoring"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// CandidateSearcher ищет кандидатов по ключевому слову.
type CandidateSearcher interface {
	Search(ctx context.Context, keyword string, maxResults int) ([]video.Candidate, error)
}

// DetailFetcher загружает детали пачками.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, ids []string) map[string]video.Detail
}

// Config: параметры отбора.
type Config struct {
	MaxResultsPerKeyword int
	Passes               int
	PassPause            time.Duration
}

// Result: итог отбора. Found=false означает «сегодня подходящего видео нет», это не ошибка.
type Result struct {
	Found      bool
	Winner     video.Scored
	Ranked     []video.Scored
	Considered int // Сколько кандидатов удалось оценить
	Unscorable int // Найдено поиском, но без пригодных деталей
	Rejected   map[filter.Reason]int
	Passes     int
	Failed     []string // Ключевые слова, которые так и не удалось обработать
}

// Selector реализует оркестрацию: поиск -> детали -> скоринг -> фильтр -> ранжирование.
type Selector struct {
	searcher CandidateSearcher
	details  DetailFetcher
	engine   *scoring.Engine
	filter   *filter.Filter
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error
}

// New создаёт новый экземпляр.
func New(searcher CandidateSearcher, details DetailFetcher, engine *scoring.Engine, f *filter.Filter, cfg Config) *Selector {
	if cfg.MaxResultsPerKeyword <= 0 {
		cfg.MaxResultsPerKeyword = 20
	}
	if cfg.Passes <= 0 {
		cfg.Passes = 3
	}
	return &Selector{
		searcher: searcher,
		details:  details,
		engine:   engine,
		filter:   f,
		cfg:      cfg,
		sleep:    sleepCtx,
	}
}

// SelectBest возвращает лучшего кандидата или Found=false.
func (s *Selector) SelectBest(ctx context.Context, keywords []string, exclude map[string]struct{}) Result {
	return s.Rank(ctx, keywords, exclude)
}

// Rank возвращает всех прошедших фильтр кандидатов в порядке убывания.
// Первый проход обрабатывает все ключевые слова; следующие повторяют только те,
// на которых провайдер вернул временную ошибку, с паузой между проходами.
// Ключевое слово с окончательной ошибкой (4xx, битый запрос) в следующие проходы не попадает.
func (s *Selector) Rank(ctx context.Context, keywords []string, exclude map[string]struct{}) Result {
	res := Result{Rejected: make(map[filter.Reason]int)}
	scoredByID := make(map[string]video.Scored)
	pending := dedupKeywords(keywords)
	var abandoned []string

	for pass := 1; pass <= s.cfg.Passes && len(pending) > 0; pass++ {
		if pass > 1 {
			log.WithFields(log.Fields{"pass": pass, "keywords": len(pending)}).Info("Retrying failed keywords")
			if err := s.sleep(ctx, s.cfg.PassPause); err != nil {
				break
			}
		}
		res.Passes = pass

		var failed []string
		for _, keyword := range pending {
			if ctx.Err() != nil {
				break
			}
			items, unscorable, err := s.processKeyword(ctx, keyword)
			res.Unscorable += unscorable
			for _, it := range items {
				if _, ok := scoredByID[it.Detail.ID]; !ok {
					scoredByID[it.Detail.ID] = it
				}
			}
			switch {
			case err == nil:
			case retry.IsPermanent(err):
				log.WithField("keyword", keyword).WithError(err).Error("keyword search failed permanently")
				abandoned = append(abandoned, keyword)
			default:
				log.WithField("keyword", keyword).WithError(err).Warn("keyword search failed")
				failed = append(failed, keyword)
			}
		}
		pending = failed

		if s.qualifying(scoredByID, exclude) > 0 {
			break
		}
	}
	res.Failed = append(abandoned, pending...)

	all := make([]video.Scored, 0, len(scoredByID))
	for _, it := range scoredByID {
		all = append(all, it)
	}
	res.Considered = len(all)

	ranked, rejected := s.filter.Apply(all, exclude)
	for reason, n := range rejected {
		res.Rejected[reason] += n
	}
	ranking.Sort(ranked)
	res.Ranked = ranked
	if len(ranked) > 0 {
		res.Found = true
		res.Winner = ranked[0]
	}
	return res
}

// processKeyword ищет, загружает детали и оценивает кандидатов одного ключевого слова.
// Частичные результаты поиска обрабатываются даже при ошибке.
func (s *Selector) processKeyword(ctx context.Context, keyword string) ([]video.Scored, int, error) {
	candidates, searchErr := s.searcher.Search(ctx, keyword, s.cfg.MaxResultsPerKeyword)
	if len(candidates) == 0 {
		return nil, 0, searchErr
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	details := s.details.FetchDetails(ctx, ids)

	scored := make([]video.Scored, 0, len(details))
	unscorable := 0
	for _, c := range candidates {
		d, ok := details[c.ID]
		if !ok {
			unscorable++
			continue
		}
		score := s.engine.ScoreDetail(d)
		log.WithFields(log.Fields{
			"video_id": d.ID,
			"final":    score.Final,
			"eligible": score.Eligible,
		}).Debug("Scored candidate")
		scored = append(scored, video.Scored{Candidate: c, Detail: d, Score: score})
	}
	return scored, unscorable, searchErr
}

func (s *Selector) qualifying(scored map[string]video.Scored, exclude map[string]struct{}) int {
	n := 0
	for _, it := range scored {
		if s.filter.Check(it, exclude) == filter.ReasonNone {
			n++
		}
	}
	return n
}

func dedupKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
