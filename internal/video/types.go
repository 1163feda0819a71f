package video

import "time"

// Candidate описывает видео сразу после поиска.
type Candidate struct {
	ID           string    `json:"id" yaml:"video_id"`
	Title        string    `json:"title" yaml:"title"`
	Description  string    `json:"description,omitempty" yaml:"-"`
	ChannelTitle string    `json:"channel_title,omitempty" yaml:"channel,omitempty"`
	PublishedAt  time.Time `json:"published_at" yaml:"-"`
	Keyword      string    `json:"keyword,omitempty" yaml:"keyword,omitempty"` // Ключевое слово, по которому нашли видео
}

// Detail: данные из videos.list, нужные для скоринга.
type Detail struct {
	ID                          string    `json:"id"`
	Title                       string    `json:"title"`
	ChannelTitle                string    `json:"channel_title"`
	PublishedAt                 time.Time `json:"published_at"`
	DurationMinutes             float64   `json:"duration_minutes"`
	EstimatedAverageViewMinutes float64   `json:"estimated_average_view_minutes"` // Приближение, не реальная аналитика
	AgeWeeks                    float64   `json:"age_weeks"`
	ViewCount                   uint64    `json:"view_count"`
	LikeCount                   uint64    `json:"like_count"`
	Embeddable                  bool      `json:"embeddable"`
}

// Score: результат ScoringEngine для одного видео.
type Score struct {
	APV        float64 `json:"apv"`
	Engagement float64 `json:"engagement_score"`
	Length     float64 `json:"length_score"`
	Age        float64 `json:"age_score"`
	Final      float64 `json:"final_score"`
	Eligible   bool    `json:"eligible"`
}

// Scored объединяет кандидата, его детали и оценку.
type Scored struct {
	Candidate Candidate `json:"candidate"`
	Detail    Detail    `json:"detail"`
	Score     Score     `json:"score"`
}

// UsedItemRecord: запись истории уже использованных видео.
type UsedItemRecord struct {
	ID          string    `json:"id"`
	Niche       string    `json:"niche"`
	Tier        string    `json:"tier"`
	FirstUsed   time.Time `json:"first_used"`
	LastUpdated time.Time `json:"last_updated"`
	Score       float64   `json:"score,omitempty"`
	PostID      string    `json:"post_id,omitempty"`
}

// History: снимок истории, как он хранится во внешнем хранилище.
type History struct {
	Version   int64                     `json:"version"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Items     map[string]UsedItemRecord `json:"items"`
	NicheRuns map[string]time.Time      `json:"niche_runs"`
}

// Post: готовый к публикации пост.
type Post struct {
	Title    string   `json:"title"`
	HTML     string   `json:"html"`
	Labels   []string `json:"labels,omitempty"`
	VideoID  string   `json:"video_id"`
	VideoURL string   `json:"video_url"`
}

// Статусы обработки ниши в отчёте.
const (
	StatusPosted           = "posted"
	StatusNothingAvailable = "nothing_available"
	StatusNotDue           = "skipped_not_due"
	StatusError            = "error"
)

// NicheOutcome описывает итог обработки одной ниши.
type NicheOutcome struct {
	Niche      string  `json:"niche"`
	Status     string  `json:"status"`
	VideoID    string  `json:"video_id,omitempty"`
	PostID     string  `json:"post_id,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Considered int     `json:"considered"`
	Error      string  `json:"error,omitempty"`
}

// RunReport: структурированный результат запуска.
type RunReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Niches     []NicheOutcome `json:"niches"`
	StateSaved bool           `json:"state_saved"`
}

// URL возвращает ссылку на видео.
func URL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
