// Package scoring реализует эвристику отбора видео: длительность, вовлечённость и возраст.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/maine/youtube_blog_worker/internal/video"
)

// epsilon поглощает ошибку округления float (0.6*12/12*100 должно давать APV=60).
const epsilon = 1e-9

// Config описывает окна и веса скоринга.
type Config struct {
	MinDurationMinutes  float64 `yaml:"min_duration_minutes"`
	MaxDurationMinutes  float64 `yaml:"max_duration_minutes"`
	PeakDurationMinutes float64 `yaml:"peak_duration_minutes"`
	LengthPenaltySpan   float64 `yaml:"length_penalty_span"`
	LengthPenaltyMax    float64 `yaml:"length_penalty_max"`

	MinAgeWeeks   float64 `yaml:"min_age_weeks"`
	MaxAgeWeeks   float64 `yaml:"max_age_weeks"`
	StaleAgeScore float64 `yaml:"stale_age_score"`

	EngagementFloorAPV float64 `yaml:"engagement_floor_apv"`
	EngagementSpanAPV  float64 `yaml:"engagement_span_apv"`

	WeightEngagement float64 `yaml:"weight_engagement"`
	WeightLength     float64 `yaml:"weight_length"`
	WeightAge        float64 `yaml:"weight_age"`
}

// DefaultConfig возвращает эталонные значения формулы.
func DefaultConfig() Config {
	return Config{
		MinDurationMinutes:  9,
		MaxDurationMinutes:  17,
		PeakDurationMinutes: 12,
		LengthPenaltySpan:   5,
		LengthPenaltyMax:    0.3,
		MinAgeWeeks:         6,
		MaxAgeWeeks:         78,
		StaleAgeScore:       0.5,
		EngagementFloorAPV:  60,
		EngagementSpanAPV:   40,
		WeightEngagement:    0.5,
		WeightLength:        0.3,
		WeightAge:           0.2,
	}
}

// ErrInvalidConfig: окна или веса скоринга противоречат друг другу.
var ErrInvalidConfig = errors.New("invalid scoring config")

// Validate проверяет согласованность окон и весов. Нули допустимы там, где они
// имеют смысл (min_age_weeks, stale_age_score, engagement_floor_apv, length_penalty_max).
func (c Config) Validate() error {
	switch {
	case c.MinDurationMinutes < 0 || c.MaxDurationMinutes <= c.MinDurationMinutes:
		return fmt.Errorf("%w: duration window [%v, %v]", ErrInvalidConfig, c.MinDurationMinutes, c.MaxDurationMinutes)
	case c.PeakDurationMinutes < c.MinDurationMinutes || c.PeakDurationMinutes > c.MaxDurationMinutes:
		return fmt.Errorf("%w: peak %v outside duration window", ErrInvalidConfig, c.PeakDurationMinutes)
	case c.LengthPenaltySpan <= 0:
		return fmt.Errorf("%w: length_penalty_span must be positive", ErrInvalidConfig)
	case c.LengthPenaltyMax < 0 || c.LengthPenaltyMax > 1:
		return fmt.Errorf("%w: length_penalty_max must be within [0,1]", ErrInvalidConfig)
	case c.MinAgeWeeks < 0 || c.MaxAgeWeeks < c.MinAgeWeeks:
		return fmt.Errorf("%w: age window [%v, %v]", ErrInvalidConfig, c.MinAgeWeeks, c.MaxAgeWeeks)
	case c.StaleAgeScore < 0 || c.StaleAgeScore > 1:
		return fmt.Errorf("%w: stale_age_score must be within [0,1]", ErrInvalidConfig)
	case c.EngagementFloorAPV < 0 || c.EngagementSpanAPV <= 0:
		return fmt.Errorf("%w: engagement floor %v, span %v", ErrInvalidConfig, c.EngagementFloorAPV, c.EngagementSpanAPV)
	case c.WeightEngagement < 0 || c.WeightLength < 0 || c.WeightAge < 0 ||
		c.WeightEngagement+c.WeightLength+c.WeightAge == 0:
		return fmt.Errorf("%w: weights must be non-negative and not all zero", ErrInvalidConfig)
	}
	return nil
}

// Engine: чистая функция скоринга с настраиваемыми окнами.
type Engine struct {
	cfg Config
}

// NewEngine создаёт движок. cfg используется как есть: частичную конфигурацию
// собирают поверх DefaultConfig(), проверяют через Validate.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config возвращает действующую конфигурацию.
func (e *Engine) Config() Config {
	return e.cfg
}

// Score считает компоненты, итоговую оценку и признак eligible.
// durationMinutes должен быть > 0, иначе APV = 0 и видео не проходит ворота.
func (e *Engine) Score(durationMinutes, estimatedAvgViewMinutes, ageWeeks float64) video.Score {
	apv := 0.0
	if durationMinutes > 0 {
		apv = (estimatedAvgViewMinutes / durationMinutes) * 100
	}

	s := video.Score{
		APV:        apv,
		Engagement: e.EngagementScore(apv),
		Length:     e.LengthScore(durationMinutes),
		Age:        e.AgeScore(ageWeeks),
	}
	s.Final = e.cfg.WeightEngagement*s.Engagement + e.cfg.WeightLength*s.Length + e.cfg.WeightAge*s.Age
	s.Eligible = e.inAgeWindow(ageWeeks) && e.inDurationWindow(durationMinutes) && apv >= e.cfg.EngagementFloorAPV-epsilon
	return s
}

// EngagementScore = (APV-60)/40, ограниченный [0,1].
func (e *Engine) EngagementScore(apv float64) float64 {
	v := (apv - e.cfg.EngagementFloorAPV) / e.cfg.EngagementSpanAPV
	return math.Min(1, math.Max(0, v))
}

// LengthScore: треугольное предпочтение с пиком на 12 минутах внутри окна 9–17.
func (e *Engine) LengthScore(durationMinutes float64) float64 {
	if !e.inDurationWindow(durationMinutes) {
		return 0
	}
	v := 1 - (math.Abs(durationMinutes-e.cfg.PeakDurationMinutes)/e.cfg.LengthPenaltySpan)*e.cfg.LengthPenaltyMax
	return math.Max(0, v)
}

// AgeScore: 0 для слишком свежих, 1 в зрелом окне, 0.5 для старых.
func (e *Engine) AgeScore(ageWeeks float64) float64 {
	switch {
	case ageWeeks < e.cfg.MinAgeWeeks-epsilon:
		return 0
	case ageWeeks <= e.cfg.MaxAgeWeeks+epsilon:
		return 1
	default:
		return e.cfg.StaleAgeScore
	}
}

func (e *Engine) inDurationWindow(d float64) bool {
	return d >= e.cfg.MinDurationMinutes-epsilon && d <= e.cfg.MaxDurationMinutes+epsilon
}

func (e *Engine) inAgeWindow(w float64) bool {
	return w >= e.cfg.MinAgeWeeks-epsilon && w <= e.cfg.MaxAgeWeeks+epsilon
}

// ScoreDetail оценивает обогащённого кандидата.
func (e *Engine) ScoreDetail(d video.Detail) video.Score {
	return e.Score(d.DurationMinutes, d.EstimatedAverageViewMinutes, d.AgeWeeks)
}
