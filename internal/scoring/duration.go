package scoring

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnknownDuration возвращается, когда длительность не удалось разобрать.
// Такое видео нельзя оценивать, это не «видео нулевой длины».
var ErrUnknownDuration = errors.New("unknown duration")

// P[nD][T[nH][nM][n[.n]S]]
var durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration переводит ISO-8601 длительность (PT#H#M#S) в минуты.
func ParseDuration(value string) (float64, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	// "P" и "PT" формально совпадают с шаблоном, но не содержат ни одной компоненты
	if value == "" || value == "P" || strings.HasSuffix(value, "T") {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDuration, value)
	}

	m := durationPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDuration, value)
	}

	var minutes float64
	multipliers := []float64{24 * 60, 60, 1, 1.0 / 60}
	for i, part := range m[1:] {
		if part == "" {
			continue
		}
		n, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrUnknownDuration, value)
		}
		minutes += n * multipliers[i]
	}
	return minutes, nil
}
