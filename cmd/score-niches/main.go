package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/maine/youtube_blog_worker/internal/app"
	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/formatter"
	"github.com/maine/youtube_blog_worker/internal/logging"
	"github.com/maine/youtube_blog_worker/internal/ranking"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// scoreEntry: строка YAML-отчёта.
type scoreEntry struct {
	VideoID  string  `yaml:"video_id"`
	Title    string  `yaml:"title"`
	URL      string  `yaml:"url"`
	Score    float64 `yaml:"score"`
	Eligible bool    `yaml:"eligible"`
}

func main() {
	configPath := flag.String("config", "configs/pipeline.yaml", "path to pipeline config")
	nicheKey := flag.String("niche", "", "score only this niche")
	top := flag.Int("top", 10, "rows per niche in the console table")
	flag.Parse()

	apiKey := os.Getenv("YOUTUBE_API_KEY")
	if apiKey == "" {
		log.Fatal("YOUTUBE_API_KEY environment variable is required")
	}

	rootCfg, err := config.LoadRoot(*configPath)
	if err != nil {
		log.Fatalf("load pipeline config: %v", err)
	}
	logging.Setup(rootCfg.Logging)

	niches := rootCfg.Niches
	if *nicheKey != "" {
		n, ok := rootCfg.FindNiche(*nicheKey)
		if !ok {
			log.Fatalf("unknown niche %q", *nicheKey)
		}
		niches = []config.Niche{n}
	}

	ctx := context.Background()
	stack := app.BuildSelection(rootCfg, apiKey, &http.Client{Timeout: 15 * time.Second}, time.Now)

	report := make(map[string][]scoreEntry, len(niches))
	for _, niche := range niches {
		log.WithField("niche", niche.Key).Info("Scoring niche...")
		// Без исключений: отчёт показывает и уже использованные видео
		res := stack.Selector.Rank(ctx, niche.Keywords, nil)

		entries := make([]scoreEntry, 0, len(res.Ranked))
		for _, s := range res.Ranked {
			entries = append(entries, scoreEntry{
				VideoID:  s.Detail.ID,
				Title:    s.Detail.Title,
				URL:      video.URL(s.Detail.ID),
				Score:    s.Score.Final,
				Eligible: s.Score.Eligible,
			})
		}
		report[niche.Key] = entries

		fmt.Printf("\n== %s (%d qualifying of %d scored) ==\n", niche.Name, len(res.Ranked), res.Considered)
		fmt.Print(formatter.ScoreTable(ranking.Top(res.Ranked, *top)))
	}

	if err := writeYAML(rootCfg.Output.ScoresPath, report); err != nil {
		log.Fatalf("write scores: %v", err)
	}
	log.WithField("path", rootCfg.Output.ScoresPath).Info("Scores written")
}

func writeYAML(path string, report map[string][]scoreEntry) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
