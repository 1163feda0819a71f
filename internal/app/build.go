package app

import (
	"net/http"
	"time"

	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/filter"
	"github.com/maine/youtube_blog_worker/internal/scoring"
	"github.com/maine/youtube_blog_worker/internal/selection"
	"github.com/maine/youtube_blog_worker/internal/youtube"
)

// SelectionStack: собранная цепочка отбора и её части, нужные пайплайну отдельно.
type SelectionStack struct {
	Selector *selection.Selector
	Details  *youtube.DetailFetcher
	Engine   *scoring.Engine
}

// BuildSelection собирает поиск, загрузку деталей, скоринг и ворота по конфигу.
// Провайдер поиска: Data API или RSS-ленты каналов; детали всегда берутся из Data API.
func BuildSelection(cfg config.Root, apiKey string, httpClient *http.Client, clock func() time.Time) SelectionStack {
	if clock == nil {
		clock = time.Now
	}
	policy := cfg.Retry.RetryPolicy()
	api := youtube.NewClient(apiKey, cfg.Search.APIBaseURL, httpClient)

	var provider youtube.SearchProvider = api
	if cfg.Search.Provider == "feeds" {
		provider = youtube.NewFeedProvider(cfg.Search.ChannelIDs, httpClient, "")
	}

	searcher := youtube.NewSearcher(provider, youtube.Filters{
		License:             cfg.Search.License,
		Duration:            cfg.Search.Duration,
		Order:               cfg.Search.Order,
		SafeSearch:          cfg.Search.SafeSearch,
		Embeddable:          cfg.Search.Embeddable,
		PublishedWithinDays: cfg.Search.PublishedWithinDays,
		MaxPages:            cfg.Search.MaxPagesPerKeyword,
	}, policy, clock)

	estimator := scoring.FractionEstimator{Fraction: cfg.Gates.AVDFraction}
	details := youtube.NewDetailFetcher(api, estimator, cfg.Pipeline.DetailBatchSize, policy, clock)
	engine := scoring.NewEngine(cfg.Scoring)

	sel := selection.New(searcher, details, engine, filter.New(cfg.Gates, cfg.Search.Embeddable), selection.Config{
		MaxResultsPerKeyword: cfg.Pipeline.MaxResultsPerKeyword,
		Passes:               cfg.Pipeline.SelectionPasses,
		PassPause:            cfg.Pipeline.PassPause(),
	})

	return SelectionStack{Selector: sel, Details: details, Engine: engine}
}
