package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maine/youtube_blog_worker/internal/retry"
	"github.com/maine/youtube_blog_worker/internal/scoring"
)

// Ошибки валидации конфигурации.
var (
	ErrNoNiches           = errors.New("at least one niche is required")
	ErrNicheMissingKey    = errors.New("niche key is required")
	ErrNicheNoKeywords    = errors.New("niche must have at least one keyword")
	ErrUnknownTier        = errors.New("niche tier is not defined in tiers")
	ErrInvalidTierDays    = errors.New("tier refresh interval must be at least 1 day")
	ErrInvalidBackend     = errors.New("state.backend must be one of: file, sqlite, postgres, redis")
	ErrMissingStateTarget = errors.New("state.path or state.dsn is required for the selected backend")
	ErrInvalidThreshold   = errors.New("gates.min_final_score must be within [0,1]")
	ErrNoPublishGate      = errors.New("gates: require_eligible or threshold_enabled must be on")
	ErrInvalidLogLevel    = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidProvider    = errors.New("search.provider must be 'api' or 'feeds'")
	ErrNoChannelFeeds     = errors.New("search.channel_ids is required when search.provider is 'feeds'")
)

type (
	// Root объединяет все конфигурационные блоки.
	Root struct {
		Pipeline   Pipeline       `yaml:"pipeline"`
		Search     Search         `yaml:"search"`
		Scoring    scoring.Config `yaml:"scoring"`
		Gates      Gates          `yaml:"gates"`
		Tiers      map[string]int `yaml:"tiers"` // Интервал обновления в днях для каждого уровня приоритета
		Niches     []Niche        `yaml:"niches"`
		Retry      Retry          `yaml:"retry"`
		State      State          `yaml:"state"`
		Transcript Transcript     `yaml:"transcript"`
		Gemini     Gemini         `yaml:"gemini"`
		Blogger    Blogger        `yaml:"blogger"`
		Output     Output         `yaml:"output"`
		Logging    Logging        `yaml:"logging"`
	}

	// Pipeline описывает параметры отбора.
	Pipeline struct {
		MaxResultsPerKeyword int `yaml:"max_results_per_keyword"`
		DetailBatchSize      int `yaml:"detail_batch_size"`
		SelectionPasses      int `yaml:"selection_passes"`
		PassPauseMs          int `yaml:"pass_pause_ms"`
		MinBlogWords         int `yaml:"min_blog_words"`
		MaxTranscriptTries   int `yaml:"max_transcript_tries"` // Сколько лучших кандидатов проверить на наличие субтитров
	}

	// Search: фильтры поискового запроса (конфигурация, не логика).
	Search struct {
		Provider            string   `yaml:"provider"` // api | feeds
		License             string   `yaml:"license"`
		Duration            string   `yaml:"duration"`
		Order               string   `yaml:"order"`
		SafeSearch          string   `yaml:"safe_search"`
		Embeddable          bool     `yaml:"embeddable"`
		PublishedWithinDays int      `yaml:"published_within_days"`
		MaxPagesPerKeyword  int      `yaml:"max_pages_per_keyword"`
		ChannelIDs          []string `yaml:"channel_ids,omitempty"`
		APIBaseURL          string   `yaml:"api_base_url,omitempty"`
	}

	// Gates: ворота публикации, включаются независимо. Хотя бы одни должны быть включены.
	// nil в RequireEligible означает true, в MinFinalScore: 0.8.
	Gates struct {
		RequireEligible  *bool    `yaml:"require_eligible"`
		ThresholdEnabled bool     `yaml:"threshold_enabled"`
		MinFinalScore    *float64 `yaml:"min_final_score"`
		AVDFraction      float64  `yaml:"avd_fraction"`
	}

	// Niche соответствует одной тематике блога.
	Niche struct {
		Key      string   `yaml:"key"`
		Name     string   `yaml:"name"`
		Tier     string   `yaml:"tier"`
		Keywords []string `yaml:"keywords"`
		Offers   []Offer  `yaml:"offers,omitempty"`
		SoftCTAs []string `yaml:"soft_ctas,omitempty"`
		Labels   []string `yaml:"labels,omitempty"`
	}

	// Offer: партнёрская ссылка для ниши.
	Offer struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	}

	// Retry описывает политику повторов для всех внешних вызовов.
	Retry struct {
		MaxAttempts       int     `yaml:"max_attempts"`
		InitialDelayMs    int     `yaml:"initial_delay_ms"`
		BackoffMultiplier float64 `yaml:"backoff_multiplier"`
		MaxDelayMs        int     `yaml:"max_delay_ms"`
		TimeoutSec        int     `yaml:"timeout_sec"`
	}

	// State: хранилище истории использованных видео.
	State struct {
		Backend        string `yaml:"backend"` // file | sqlite | postgres | redis
		Path           string `yaml:"path"`
		DSN            string `yaml:"dsn"`
		KeyPrefix      string `yaml:"key_prefix"`
		PendingPath    string `yaml:"pending_path"`
		HistoryTTLDays *int   `yaml:"history_ttl_days"` // nil: выводится из окна возраста
	}

	// Transcript: источник субтитров.
	Transcript struct {
		BaseURL   string   `yaml:"base_url"`
		Languages []string `yaml:"languages"`
	}

	// Gemini содержит настройки модели.
	Gemini struct {
		ModelPost   string  `yaml:"model_post"`
		Temperature float32 `yaml:"temperature"`
	}

	// Blogger: куда публикуем.
	Blogger struct {
		BlogID  string `yaml:"blog_id"`
		BlogURL string `yaml:"blog_url"`
		IsDraft bool   `yaml:"is_draft"`
	}

	// Output: локальные артефакты запуска.
	Output struct {
		FeedPath   string `yaml:"feed_path"`
		ReportPath string `yaml:"report_path"`
		ScoresPath string `yaml:"scores_path"`
	}

	// Logging: уровень и формат логов.
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}
)

// LoadRoot читает основной файл конфигурации, подставляет значения по умолчанию и валидирует.
func LoadRoot(path string) (Root, error) {
	return Load(path, nil)
}

// Load: как LoadRoot, но перед валидацией применяет переопределения из окружения.
func Load(path string, env *EnvConfig) (Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Root{}, fmt.Errorf("read config: %w", err)
	}

	// Явный 0 в секции scoring должен сохраниться, поэтому декодируем поверх эталона
	cfg := Root{Scoring: scoring.DefaultConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Root{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnv(env)
	if err := cfg.Validate(); err != nil {
		return Root{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults заполняет незаданные поля эталонными значениями.
func (r *Root) ApplyDefaults() {
	p := &r.Pipeline
	if p.MaxResultsPerKeyword <= 0 {
		p.MaxResultsPerKeyword = 20
	}
	if p.DetailBatchSize <= 0 || p.DetailBatchSize > 50 {
		p.DetailBatchSize = 50
	}
	if p.SelectionPasses <= 0 {
		p.SelectionPasses = 3
	}
	if p.PassPauseMs < 0 {
		p.PassPauseMs = 0
	}
	if p.MinBlogWords <= 0 {
		p.MinBlogWords = 800
	}
	if p.MaxTranscriptTries <= 0 {
		p.MaxTranscriptTries = 5
	}

	s := &r.Search
	if s.Provider == "" {
		s.Provider = "api"
	}
	if s.License == "" {
		s.License = "creativeCommon"
	}
	if s.Duration == "" {
		s.Duration = "medium"
	}
	if s.Order == "" {
		s.Order = "relevance"
	}
	if s.SafeSearch == "" {
		s.SafeSearch = "moderate"
	}
	if s.MaxPagesPerKeyword <= 0 {
		s.MaxPagesPerKeyword = 5
	}

	if r.Scoring == (scoring.Config{}) {
		r.Scoring = scoring.DefaultConfig()
	}
	if r.Gates.RequireEligible == nil {
		r.Gates.RequireEligible = Bool(true)
	}
	if r.Gates.MinFinalScore == nil {
		r.Gates.MinFinalScore = Float(DefaultMinFinalScore)
	}
	if r.Gates.AVDFraction <= 0 {
		r.Gates.AVDFraction = scoring.DefaultAVDFraction
	}

	if len(r.Tiers) == 0 {
		r.Tiers = map[string]int{"daily": 1, "every-3-days": 3, "weekly": 7}
	}
	for i := range r.Niches {
		r.Niches[i].Key = NormalizeNicheKey(r.Niches[i].Key)
		if r.Niches[i].Tier == "" {
			r.Niches[i].Tier = "daily"
		}
		if r.Niches[i].Name == "" {
			r.Niches[i].Name = DisplayName(r.Niches[i].Key)
		}
	}

	rt := &r.Retry
	if rt.MaxAttempts <= 0 {
		rt.MaxAttempts = 3
	}
	if rt.InitialDelayMs <= 0 {
		rt.InitialDelayMs = 1000
	}
	if rt.BackoffMultiplier < 1 {
		rt.BackoffMultiplier = 2
	}
	if rt.MaxDelayMs <= 0 {
		rt.MaxDelayMs = 10000
	}
	if rt.TimeoutSec <= 0 {
		rt.TimeoutSec = 15
	}

	st := &r.State
	if st.Backend == "" {
		st.Backend = "file"
	}
	if st.Backend == "file" && st.Path == "" {
		st.Path = "state/history.json"
	}
	if st.KeyPrefix == "" {
		st.KeyPrefix = "blogworker"
	}
	if st.PendingPath == "" {
		st.PendingPath = "state/history.pending.json"
	}

	if r.Transcript.BaseURL == "" {
		r.Transcript.BaseURL = "https://www.youtube.com/api/timedtext"
	}
	if len(r.Transcript.Languages) == 0 {
		r.Transcript.Languages = []string{"en", "en-US", "en-GB"}
	}

	if r.Gemini.ModelPost == "" {
		r.Gemini.ModelPost = "gemini-2.5-flash"
	}
	if r.Gemini.Temperature == 0 {
		r.Gemini.Temperature = 0.7
	}

	if r.Output.FeedPath == "" {
		r.Output.FeedPath = "out/posts.atom"
	}
	if r.Output.ScoresPath == "" {
		r.Output.ScoresPath = "out/scores.yaml"
	}

	if r.Logging.Level == "" {
		r.Logging.Level = "info"
	}
	if r.Logging.Format == "" {
		r.Logging.Format = "text"
	}
}

// Validate проверяет конфигурацию.
func (r *Root) Validate() error {
	if len(r.Niches) == 0 {
		return ErrNoNiches
	}
	for name, days := range r.Tiers {
		if days < 1 {
			return fmt.Errorf("%w: %s", ErrInvalidTierDays, name)
		}
	}
	for i, n := range r.Niches {
		if n.Key == "" {
			return fmt.Errorf("%w: niches[%d]", ErrNicheMissingKey, i)
		}
		if len(n.Keywords) == 0 {
			return fmt.Errorf("%w: %s", ErrNicheNoKeywords, n.Key)
		}
		if _, ok := r.Tiers[n.Tier]; !ok {
			return fmt.Errorf("%w: %s (tier %q)", ErrUnknownTier, n.Key, n.Tier)
		}
	}

	switch r.Search.Provider {
	case "api":
	case "feeds":
		if len(r.Search.ChannelIDs) == 0 {
			return ErrNoChannelFeeds
		}
	default:
		return ErrInvalidProvider
	}

	switch r.State.Backend {
	case "file", "sqlite":
		if r.State.Path == "" && r.State.DSN == "" {
			return fmt.Errorf("%w: %s", ErrMissingStateTarget, r.State.Backend)
		}
	case "postgres", "redis":
		if r.State.DSN == "" {
			return fmt.Errorf("%w: %s", ErrMissingStateTarget, r.State.Backend)
		}
	default:
		return ErrInvalidBackend
	}

	if !r.Gates.EligibleRequired() && !r.Gates.ThresholdEnabled {
		return ErrNoPublishGate
	}
	if t := r.Gates.Threshold(); t < 0 || t > 1 {
		return ErrInvalidThreshold
	}
	if err := r.Scoring.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[r.Logging.Level] {
		return ErrInvalidLogLevel
	}
	return nil
}

// DefaultMinFinalScore: эталонный порог по finalScore.
const DefaultMinFinalScore = 0.8

// EligibleRequired сообщает, включены ли ворота eligible (по умолчанию да).
func (g Gates) EligibleRequired() bool {
	return g.RequireEligible == nil || *g.RequireEligible
}

// Threshold возвращает порог по finalScore (по умолчанию 0.8).
func (g Gates) Threshold() float64 {
	if g.MinFinalScore == nil {
		return DefaultMinFinalScore
	}
	return *g.MinFinalScore
}

// Bool возвращает указатель на v.
func Bool(v bool) *bool { return &v }

// Float возвращает указатель на v.
func Float(v float64) *float64 { return &v }

// RetryPolicy переводит настройки в retry.Policy.
func (r Retry) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: time.Duration(r.InitialDelayMs) * time.Millisecond,
		Multiplier:   r.BackoffMultiplier,
		MaxDelay:     time.Duration(r.MaxDelayMs) * time.Millisecond,
		CallTimeout:  time.Duration(r.TimeoutSec) * time.Second,
	}
}

// PassPause возвращает паузу между проходами отбора.
func (p Pipeline) PassPause() time.Duration {
	return time.Duration(p.PassPauseMs) * time.Millisecond
}

// TierDays возвращает интервал обновления для уровня (по умолчанию 1 день).
func (r Root) TierDays(tier string) int {
	if days, ok := r.Tiers[tier]; ok && days > 0 {
		return days
	}
	return 1
}

// HistoryTTL возвращает срок хранения записей истории; 0: хранить бессрочно.
// Если не задан явно и включены ворота eligible, видео старше окна возраста
// уже не может снова пройти отбор, поэтому запись можно удалить.
func (r Root) HistoryTTL() time.Duration {
	if r.State.HistoryTTLDays != nil {
		if *r.State.HistoryTTLDays <= 0 {
			return 0
		}
		return time.Duration(*r.State.HistoryTTLDays) * 24 * time.Hour
	}
	if !r.Gates.EligibleRequired() {
		return 0
	}
	maxAge := r.Scoring.MaxAgeWeeks
	if maxAge <= 0 {
		maxAge = scoring.DefaultConfig().MaxAgeWeeks
	}
	return time.Duration(maxAge*7) * 24 * time.Hour
}

// FindNiche ищет нишу по ключу (ключ нормализуется).
func (r Root) FindNiche(key string) (Niche, bool) {
	key = NormalizeNicheKey(key)
	for _, n := range r.Niches {
		if n.Key == key {
			return n, true
		}
	}
	return Niche{}, false
}

// NormalizeNicheKey приводит ключ к нижнему регистру, убирает кавычки и заменяет пробелы на "_".
func NormalizeNicheKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.NewReplacer(`"`, "", "'", "", " ", "_").Replace(key)
	return key
}

// DisplayName превращает ключ ниши в заголовок: weight_loss -> Weight Loss.
func DisplayName(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
