package youtube

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/retry"
	"github.com/maine/youtube_blog_worker/internal/scoring"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// DetailProvider: источник метаданных видео.
type DetailProvider interface {
	Videos(ctx context.Context, ids []string) ([]VideoItem, error)
}

// DetailFetcher загружает детали пачками и превращает их в video.Detail.
type DetailFetcher struct {
	provider  DetailProvider
	estimator scoring.Estimator
	batchSize int
	policy    retry.Policy
	clock     func() time.Time
}

// NewDetailFetcher создаёт новый экземпляр. batchSize вне (0, 50] заменяется на 50.
func NewDetailFetcher(provider DetailProvider, estimator scoring.Estimator, batchSize int, policy retry.Policy, clock func() time.Time) *DetailFetcher {
	if batchSize <= 0 || batchSize > MaxPageSize {
		batchSize = MaxPageSize
	}
	if estimator == nil {
		estimator = scoring.FractionEstimator{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &DetailFetcher{
		provider:  provider,
		estimator: estimator,
		batchSize: batchSize,
		policy:    policy,
		clock:     clock,
	}
}

// FetchDetails возвращает детали по id. Отсутствующие в ответе, непригодные для скоринга
// и попавшие в неудачную пачку видео в результат не попадают.
func (f *DetailFetcher) FetchDetails(ctx context.Context, ids []string) map[string]video.Detail {
	result := make(map[string]video.Detail, len(ids))
	now := f.clock()

	for start := 0; start < len(ids); start += f.batchSize {
		end := min(start+f.batchSize, len(ids))
		batch := ids[start:end]

		var items []VideoItem
		err := retry.Do(ctx, f.policy, "videos.list", func(ctx context.Context) error {
			var err error
			items, err = f.provider.Videos(ctx, batch)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return result
			}
			log.WithFields(log.Fields{
				"batch_start": start,
				"batch_size":  len(batch),
			}).WithError(err).Warn("detail batch skipped")
			continue
		}

		for _, item := range items {
			detail, err := f.toDetail(item, now)
			if err != nil {
				log.WithField("video_id", item.ID).WithError(err).Debug("video not scorable")
				continue
			}
			result[detail.ID] = detail
		}
	}
	return result
}

func (f *DetailFetcher) toDetail(item VideoItem, now time.Time) (video.Detail, error) {
	minutes, err := scoring.ParseDuration(item.ContentDetails.Duration)
	if err != nil {
		return video.Detail{}, err
	}
	if minutes <= 0 {
		return video.Detail{}, scoring.ErrUnknownDuration
	}

	published, err := scoring.ParsePublished(item.Snippet.PublishedAt)
	if err != nil {
		return video.Detail{}, err
	}

	d := video.Detail{
		ID:              item.ID,
		Title:           item.Snippet.Title,
		ChannelTitle:    item.Snippet.ChannelTitle,
		PublishedAt:     published,
		DurationMinutes: minutes,
		AgeWeeks:        scoring.AgeWeeksSince(published, now),
		ViewCount:       parseCount(item.Statistics.ViewCount),
		LikeCount:       parseCount(item.Statistics.LikeCount),
		Embeddable:      item.Status.Embeddable,
	}
	d.EstimatedAverageViewMinutes = f.estimator.EstimateAverageViewMinutes(d)
	return d, nil
}

// parseCount: скрытые счётчики приходят пустыми и считаются нулём.
func parseCount(value string) uint64 {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
