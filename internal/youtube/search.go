package youtube

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/retry"
	"github.com/maine/youtube_blog_worker/internal/scoring"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// SearchProvider: источник поисковой выдачи.
type SearchProvider interface {
	Search(ctx context.Context, q SearchQuery) (SearchPage, error)
}

// Filters: фильтры поиска уровня запроса.
type Filters struct {
	License             string
	Duration            string
	Order               string
	SafeSearch          string
	Embeddable          bool
	PublishedWithinDays int
	MaxPages            int
}

// Searcher собирает кандидатов по ключевому слову с пагинацией.
type Searcher struct {
	provider SearchProvider
	filters  Filters
	policy   retry.Policy
	clock    func() time.Time
}

// NewSearcher создаёт новый экземпляр.
func NewSearcher(provider SearchProvider, filters Filters, policy retry.Policy, clock func() time.Time) *Searcher {
	if clock == nil {
		clock = time.Now
	}
	if filters.MaxPages <= 0 {
		filters.MaxPages = 5
	}
	return &Searcher{provider: provider, filters: filters, policy: policy, clock: clock}
}

// Search листает страницы, пока не наберётся maxResults кандидатов или выдача не закончится.
// Если страница не загрузилась после повторов, возвращает собранное до этого момента вместе с ошибкой.
func (s *Searcher) Search(ctx context.Context, keyword string, maxResults int) ([]video.Candidate, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	query := SearchQuery{
		Keyword:    keyword,
		License:    s.filters.License,
		Duration:   s.filters.Duration,
		Order:      s.filters.Order,
		SafeSearch: s.filters.SafeSearch,
		Embeddable: s.filters.Embeddable,
	}
	if s.filters.PublishedWithinDays > 0 {
		cutoff := s.clock().UTC().AddDate(0, 0, -s.filters.PublishedWithinDays)
		query.PublishedAfter = cutoff.Format(time.RFC3339)
	}

	seen := make(map[string]struct{}, maxResults)
	results := make([]video.Candidate, 0, maxResults)

	for page := 0; page < s.filters.MaxPages && len(results) < maxResults; page++ {
		query.MaxResults = min(MaxPageSize, maxResults-len(results))

		var resp SearchPage
		err := retry.Do(ctx, s.policy, "search "+keyword, func(ctx context.Context) error {
			var err error
			resp, err = s.provider.Search(ctx, query)
			return err
		})
		if err != nil {
			return results, fmt.Errorf("search %q page %d: %w", keyword, page+1, err)
		}

		for _, item := range resp.Items {
			id := item.ID.VideoID
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			results = append(results, video.Candidate{
				ID:           id,
				Title:        item.Snippet.Title,
				Description:  item.Snippet.Description,
				ChannelTitle: item.Snippet.ChannelTitle,
				PublishedAt:  publishedTime(item.Snippet.PublishedAt),
				Keyword:      keyword,
			})
			if len(results) == maxResults {
				break
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		query.PageToken = resp.NextPageToken
	}

	if len(results) < maxResults {
		log.WithFields(log.Fields{
			"keyword": keyword,
			"found":   len(results),
			"wanted":  maxResults,
		}).Warn("search exhausted before reaching max results")
	}
	return results, nil
}

func publishedTime(value string) time.Time {
	t, err := scoring.ParsePublished(value)
	if err != nil {
		return time.Time{}
	}
	return t
}
