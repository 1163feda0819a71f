package filter

import (
	"testing"

	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/video"
)

func scored(id string, final float64, eligible, embeddable bool) video.Scored {
	return video.Scored{
		Detail: video.Detail{ID: id, Embeddable: embeddable},
		Score:  video.Score{Final: final, Eligible: eligible},
	}
}

func TestFilter_Apply(t *testing.T) {
	input := []video.Scored{
		scored("reference", 0.625, true, true),
		scored("high-ineligible", 0.9, false, true),
		scored("high-eligible", 0.85, true, true),
		scored("no-embed", 0.85, true, false),
		scored("used", 0.95, true, true),
		scored("reference", 0.625, true, true),
	}
	exclude := map[string]struct{}{"used": {}}

	tests := []struct {
		name  string
		gates config.Gates
		embed bool
		want  []string
	}{
		{
			name:  "eligible gate only",
			gates: config.Gates{RequireEligible: config.Bool(true)},
			embed: true,
			want:  []string{"reference", "high-eligible"},
		},
		{
			name:  "threshold gate only",
			gates: config.Gates{RequireEligible: config.Bool(false), ThresholdEnabled: true, MinFinalScore: config.Float(0.8)},
			embed: true,
			want:  []string{"high-ineligible", "high-eligible"},
		},
		{
			name:  "both gates",
			gates: config.Gates{RequireEligible: config.Bool(true), ThresholdEnabled: true, MinFinalScore: config.Float(0.8)},
			embed: false,
			want:  []string{"high-eligible", "no-embed"},
		},
		{
			name:  "zero gates require eligible",
			gates: config.Gates{},
			embed: false,
			want:  []string{"reference", "high-eligible", "no-embed"},
		},
		{
			name:  "threshold gate with zero score",
			gates: config.Gates{RequireEligible: config.Bool(false), ThresholdEnabled: true, MinFinalScore: config.Float(0)},
			embed: false,
			want:  []string{"reference", "high-ineligible", "high-eligible", "no-embed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rejected := New(tt.gates, tt.embed).Apply(input, exclude)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() = %d items, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].Detail.ID != id {
					t.Errorf("Apply()[%d] = %s, want %s", i, got[i].Detail.ID, id)
				}
			}
			if rejected[ReasonUsed] != 1 || rejected[ReasonDuplicate] != 1 {
				t.Errorf("rejected = %v", rejected)
			}
		})
	}
}

func TestFilter_Check_ReferenceScenario(t *testing.T) {
	// 0.625 проходит ворота eligible, но не порог 0.8: проверки независимы
	s := scored("x", 0.625, true, true)
	if r := New(config.Gates{RequireEligible: config.Bool(true)}, true).Check(s, nil); r != ReasonNone {
		t.Errorf("eligible gate: reason = %q, want none", r)
	}
	if r := New(config.Gates{RequireEligible: config.Bool(false), ThresholdEnabled: true}, true).Check(s, nil); r != ReasonBelowScore {
		t.Errorf("threshold gate: reason = %q, want %q", r, ReasonBelowScore)
	}
}
