// Package logging настраивает logrus для всех команд.
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/config"
)

// Setup применяет уровень и формат логирования.
func Setup(cfg config.Logging) {
	log.SetOutput(os.Stderr)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
