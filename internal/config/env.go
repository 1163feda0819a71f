package config

import (
	"fmt"
	"os"
)

// EnvConfig содержит токены и флаги запуска из переменных окружения.
type EnvConfig struct {
	ConfigPath         string
	YouTubeAPIKey      string
	GeminiAPIKey       string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	StateDSN           string // Переопределяет state.dsn
	Niche              string // Запустить только эту нишу, независимо от расписания
	ForceRun           bool   // Игнорировать расписание уровней
	DryRun             bool   // Публиковать в Atom-файл вместо Blogger
	SkipWriter         bool   // Не вызывать Gemini (в тело поста идёт транскрипт)
}

// LoadEnvConfig читает переменные окружения и возвращает конфигурацию.
// Возвращает ошибку, если обязательные переменные отсутствуют или пустые.
func LoadEnvConfig() (*EnvConfig, error) {
	env := &EnvConfig{
		ConfigPath:         os.Getenv("CONFIG_PATH"),
		YouTubeAPIKey:      os.Getenv("YOUTUBE_API_KEY"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRefreshToken: os.Getenv("GOOGLE_REFRESH_TOKEN"),
		StateDSN:           os.Getenv("STATE_DSN"),
		Niche:              os.Getenv("NICHE"),
		ForceRun:           os.Getenv("FORCE_RUN") == "1",
		DryRun:             os.Getenv("DRY_RUN") == "1",
		SkipWriter:         os.Getenv("SKIP_WRITER") == "1",
	}
	if env.ConfigPath == "" {
		env.ConfigPath = "configs/pipeline.yaml"
	}

	if env.YouTubeAPIKey == "" {
		return nil, fmt.Errorf("YOUTUBE_API_KEY environment variable is required")
	}

	// GEMINI_API_KEY обязателен, если не пропускаем генерацию текста
	if !env.SkipWriter && env.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required (or set SKIP_WRITER=1)")
	}

	// Учётные данные Blogger нужны только при реальной публикации
	if !env.DryRun {
		for name, v := range map[string]string{
			"GOOGLE_CLIENT_ID":     env.GoogleClientID,
			"GOOGLE_CLIENT_SECRET": env.GoogleClientSecret,
			"GOOGLE_REFRESH_TOKEN": env.GoogleRefreshToken,
		} {
			if v == "" {
				return nil, fmt.Errorf("%s environment variable is required (or set DRY_RUN=1)", name)
			}
		}
	}

	return env, nil
}

// ApplyEnv переносит переопределения из окружения в конфиг.
func (r *Root) ApplyEnv(env *EnvConfig) {
	if env == nil {
		return
	}
	if env.StateDSN != "" {
		r.State.DSN = env.StateDSN
	}
}
