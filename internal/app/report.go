package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maine/youtube_blog_worker/internal/video"
)

// WriteReport сохраняет отчёт запуска в JSON. Пустой path: ничего не делать.
func WriteReport(path string, report video.RunReport) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Summary возвращает число ниш по статусам.
func Summary(report video.RunReport) map[string]int {
	counts := make(map[string]int)
	for _, o := range report.Niches {
		counts[o.Status]++
	}
	return counts
}
