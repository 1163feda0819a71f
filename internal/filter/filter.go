package filter

import (
	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// Reason объясняет, почему кандидат отсеян.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNotEligible   Reason = "not_eligible"
	ReasonBelowScore    Reason = "below_threshold"
	ReasonNotEmbeddable Reason = "not_embeddable"
	ReasonUsed          Reason = "already_used"
	ReasonDuplicate     Reason = "duplicate"
)

// Filter реализует ворота публикации. Ворота eligible и порог по finalScore
// включаются независимо друг от друга; нулевой config.Gates требует eligible.
type Filter struct {
	gates      config.Gates
	embeddable bool
}

// New создаёт экземпляр фильтра. requireEmbeddable отсекает видео, которые нельзя встроить в пост.
func New(gates config.Gates, requireEmbeddable bool) *Filter {
	return &Filter{gates: gates, embeddable: requireEmbeddable}
}

// Check возвращает причину отсева или ReasonNone.
func (f *Filter) Check(s video.Scored, exclude map[string]struct{}) Reason {
	if _, used := exclude[s.Detail.ID]; used {
		return ReasonUsed
	}
	if f.gates.EligibleRequired() && !s.Score.Eligible {
		return ReasonNotEligible
	}
	if f.gates.ThresholdEnabled && s.Score.Final < f.gates.Threshold() {
		return ReasonBelowScore
	}
	if f.embeddable && !s.Detail.Embeddable {
		return ReasonNotEmbeddable
	}
	return ReasonNone
}

// Apply оставляет кандидатов, прошедших все ворота; повторы id отбрасываются.
func (f *Filter) Apply(scored []video.Scored, exclude map[string]struct{}) ([]video.Scored, map[Reason]int) {
	rejected := make(map[Reason]int)
	seen := make(map[string]struct{}, len(scored))
	filtered := make([]video.Scored, 0, len(scored))

	for _, s := range scored {
		if _, dup := seen[s.Detail.ID]; dup {
			rejected[ReasonDuplicate]++
			continue
		}
		seen[s.Detail.ID] = struct{}{}

		if reason := f.Check(s, exclude); reason != ReasonNone {
			rejected[reason]++
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered, rejected
}
