package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/app"
	"github.com/maine/youtube_blog_worker/internal/blogger"
	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/formatter"
	"github.com/maine/youtube_blog_worker/internal/gemini"
	"github.com/maine/youtube_blog_worker/internal/logging"
	"github.com/maine/youtube_blog_worker/internal/postfeed"
	"github.com/maine/youtube_blog_worker/internal/state"
	"github.com/maine/youtube_blog_worker/internal/transcript"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Загружаем переменные окружения (токены и флаги запуска)
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		log.Fatalf("load env config: %v", err)
	}

	// Загружаем конфигурацию из YAML
	rootCfg, err := config.Load(envCfg.ConfigPath, envCfg)
	if err != nil {
		log.Fatalf("load pipeline config: %v", err)
	}
	logging.Setup(rootCfg.Logging)

	policy := rootCfg.Retry.RetryPolicy()
	httpClient := &http.Client{Timeout: 15 * time.Second}

	// История использованных видео
	backend, closeBackend, err := state.OpenBackend(ctx, rootCfg.State, time.Now)
	if err != nil {
		log.Fatalf("open history backend: %v", err)
	}
	defer closeBackend()

	store, err := state.Open(ctx, backend, state.Options{
		TTL:         rootCfg.HistoryTTL(),
		PendingPath: rootCfg.State.PendingPath,
		Retry:       policy,
	})
	if err != nil {
		log.Fatalf("open history: %v", err)
	}
	log.WithFields(log.Fields{"backend": rootCfg.State.Backend, "records": store.Len()}).Info("History loaded")

	stack := app.BuildSelection(rootCfg, envCfg.YouTubeAPIKey, httpClient, time.Now)
	transcripts := transcript.NewFetcher(httpClient, rootCfg.Transcript.BaseURL, rootCfg.Transcript.Languages, policy)

	// Gemini нужен только если генерируем текст
	var writer app.Writer
	var labeler app.Labeler
	if !envCfg.SkipWriter {
		geminiClient, err := gemini.NewClient(ctx, envCfg.GeminiAPIKey, rootCfg.Gemini.Temperature, policy)
		if err != nil {
			log.Fatalf("failed to create Gemini client: %v", err)
		}
		writer = gemini.NewWriter(geminiClient, rootCfg.Gemini)
		labeler = gemini.NewLabeler(geminiClient, rootCfg.Gemini.ModelPost)
	}

	// DRY_RUN публикует в локальную Atom-ленту
	var publisher app.Publisher
	if envCfg.DryRun {
		publisher = postfeed.NewSink(rootCfg.Output.FeedPath, "Blog worker dry run", rootCfg.Blogger.BlogURL)
		log.WithField("path", rootCfg.Output.FeedPath).Info("Dry run: posts go to local feed")
	} else {
		oauthClient := blogger.NewOAuthHTTPClient(ctx, envCfg.GoogleClientID, envCfg.GoogleClientSecret, envCfg.GoogleRefreshToken)
		publisher = blogger.NewPublisher(blogger.NewClient(oauthClient, ""), rootCfg.Blogger, policy)
	}

	// Создаём пайплайн
	p := app.NewPipeline(app.PipelineDeps{
		Config: rootCfg,
		Options: app.Options{
			Niche:      envCfg.Niche,
			ForceRun:   envCfg.ForceRun,
			SkipWriter: envCfg.SkipWriter,
		},
		Selector:    stack.Selector,
		Details:     stack.Details,
		Scorer:      stack.Engine,
		Transcripts: transcripts,
		Writer:      writer,
		Labeler:     labeler,
		Formatter:   formatter.NewFormatter(),
		Publisher:   publisher,
		Store:       store,
	})

	report, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("pipeline failed: %v", err)
	}
	if err := app.WriteReport(rootCfg.Output.ReportPath, report); err != nil {
		log.WithError(err).Warn("run report not written")
	}

	log.WithFields(log.Fields{
		"run_id":      report.RunID,
		"summary":     app.Summary(report),
		"state_saved": report.StateSaved,
	}).Info("pipeline completed")
}
