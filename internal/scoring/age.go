package scoring

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownAge возвращается для непарсируемой даты публикации.
var ErrUnknownAge = errors.New("unknown age")

// PublishedLayout: формат publishedAt в ответах YouTube Data API.
const PublishedLayout = "2006-01-02T15:04:05Z"

// ParsePublished разбирает дату публикации (UTC).
func ParsePublished(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrUnknownAge)
	}
	for _, layout := range []string{PublishedLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownAge, value)
}

// AgeWeeks возвращает возраст видео в неделях: целые прошедшие сутки / 7, без округления.
func AgeWeeks(published string, now time.Time) (float64, error) {
	t, err := ParsePublished(published)
	if err != nil {
		return 0, err
	}
	return AgeWeeksSince(t, now), nil
}

// AgeWeeksSince считает возраст по уже разобранной дате. Даты в будущем дают 0.
func AgeWeeksSince(published, now time.Time) float64 {
	elapsed := now.Sub(published)
	if elapsed < 0 {
		return 0
	}
	days := int64(elapsed / (24 * time.Hour))
	return float64(days) / 7
}
