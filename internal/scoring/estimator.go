package scoring

import "github.com/maine/youtube_blog_worker/internal/video"

// DefaultAVDFraction: доля длительности, которая подставляется вместо реального
// среднего времени просмотра (Analytics API недоступен).
const DefaultAVDFraction = 0.7

// Estimator оценивает среднее время просмотра видео в минутах.
type Estimator interface {
	EstimateAverageViewMinutes(d video.Detail) float64
}

// FractionEstimator: приближение: фиксированная доля длительности.
type FractionEstimator struct {
	Fraction float64
}

var _ Estimator = FractionEstimator{}

// EstimateAverageViewMinutes реализует Estimator.
func (e FractionEstimator) EstimateAverageViewMinutes(d video.Detail) float64 {
	fraction := e.Fraction
	if fraction <= 0 {
		fraction = DefaultAVDFraction
	}
	return d.DurationMinutes * fraction
}
