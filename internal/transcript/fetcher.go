// Package transcript загружает английские субтитры видео и проверяет, годятся ли они для поста.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maine/youtube_blog_worker/internal/retry"
)

// ErrNotAvailable: у видео нет английских субтитров.
var ErrNotAvailable = errors.New("transcript not available")

// DefaultBaseURL: endpoint субтитров YouTube.
const DefaultBaseURL = "https://www.youtube.com/api/timedtext"

// Track: дорожка субтитров из списка type=list.
type Track struct {
	LangCode string
	Name     string
}

// Fetcher загружает субтитры через timedtext.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	languages []string
	policy    retry.Policy
}

// NewFetcher создаёт новый экземпляр. languages: порядок предпочтения дорожек.
func NewFetcher(client *http.Client, baseURL string, languages []string, policy retry.Policy) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if len(languages) == 0 {
		languages = []string{"en", "en-US", "en-GB"}
	}
	return &Fetcher{client: client, baseURL: baseURL, languages: languages, policy: policy}
}

// Fetch возвращает текст субтитров одной строкой.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	var tracks []Track
	err := retry.Do(ctx, f.policy, "transcript list", func(ctx context.Context) error {
		var err error
		tracks, err = f.listTracks(ctx, videoID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("list transcript tracks for %s: %w", videoID, err)
	}

	track, ok := pickTrack(tracks, f.languages)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotAvailable, videoID)
	}

	var text string
	err = retry.Do(ctx, f.policy, "transcript fetch", func(ctx context.Context) error {
		var err error
		text, err = f.fetchTrack(ctx, videoID, track)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("fetch transcript for %s: %w", videoID, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s (empty track)", ErrNotAvailable, videoID)
	}
	return text, nil
}

// pickTrack выбирает дорожку: сначала по списку предпочтений, затем любую en-*.
func pickTrack(tracks []Track, languages []string) (Track, bool) {
	for _, lang := range languages {
		for _, t := range tracks {
			if strings.EqualFold(t.LangCode, lang) {
				return t, true
			}
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(strings.ToLower(t.LangCode), "en") {
			return t, true
		}
	}
	return Track{}, false
}

func (f *Fetcher) listTracks(ctx context.Context, videoID string) ([]Track, error) {
	doc, err := f.get(ctx, url.Values{"type": {"list"}, "v": {videoID}})
	if err != nil {
		return nil, err
	}

	var tracks []Track
	doc.Find("track").Each(func(i int, s *goquery.Selection) {
		code, _ := s.Attr("lang_code")
		name, _ := s.Attr("name")
		if code != "" {
			tracks = append(tracks, Track{LangCode: code, Name: name})
		}
	})
	return tracks, nil
}

func (f *Fetcher) fetchTrack(ctx context.Context, videoID string, track Track) (string, error) {
	params := url.Values{"v": {videoID}, "lang": {track.LangCode}}
	if track.Name != "" {
		params.Set("name", track.Name)
	}
	doc, err := f.get(ctx, params)
	if err != nil {
		return "", err
	}

	var parts []string
	doc.Find("text").Each(func(i int, s *goquery.Selection) {
		// timedtext экранирует сущности дважды
		line := html.UnescapeString(s.Text())
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			parts = append(parts, line)
		}
	})
	return strings.Join(parts, " "), nil
}

func (f *Fetcher) get(ctx context.Context, params url.Values) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return nil, &statusError{code: res.StatusCode}
	}
	return goquery.NewDocumentFromReader(res.Body)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("timedtext status %d", e.code)
}

// Temporary: повторяем только 5xx и 429.
func (e *statusError) Temporary() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}
