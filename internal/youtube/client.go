package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL: адрес YouTube Data API v3.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// MaxPageSize: лимит API на размер страницы и пачки id.
const MaxPageSize = 50

// APIError: ошибка ответа API.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube api status %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("youtube api status %d: %s", e.StatusCode, e.Message)
}

// Temporary сообщает, имеет ли смысл повторить запрос.
// Исчерпанная квота (403 quotaExceeded) не временная в пределах одного запуска.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client инкапсулирует работу с YouTube Data API.
type Client struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// Убеждаемся, что Client реализует оба интерфейса провайдеров.
var (
	_ SearchProvider = (*Client)(nil)
	_ DetailProvider = (*Client)(nil)
)

// NewClient создаёт клиента. apiKey обязателен, baseURL можно оставить пустым.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Search выполняет один вызов search.list.
func (c *Client) Search(ctx context.Context, q SearchQuery) (SearchPage, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", q.Keyword)

	size := q.MaxResults
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}
	params.Set("maxResults", strconv.Itoa(size))

	setIf := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	setIf("pageToken", q.PageToken)
	setIf("videoLicense", q.License)
	setIf("videoDuration", q.Duration)
	setIf("order", q.Order)
	setIf("safeSearch", q.SafeSearch)
	setIf("publishedAfter", q.PublishedAfter)
	if q.Embeddable {
		params.Set("videoEmbeddable", "true")
	}

	var page SearchPage
	if err := c.get(ctx, "search", params, &page); err != nil {
		return SearchPage{}, err
	}
	return page, nil
}

// Videos запрашивает детали для не более чем MaxPageSize id.
func (c *Client) Videos(ctx context.Context, ids []string) ([]VideoItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxPageSize {
		return nil, fmt.Errorf("videos.list accepts at most %d ids, got %d", MaxPageSize, len(ids))
	}

	params := url.Values{}
	params.Set("part", "contentDetails,statistics,snippet,status")
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(MaxPageSize))

	var resp videosResponse
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) get(ctx context.Context, method string, params url.Values, out interface{}) error {
	params.Set("key", c.apiKey)
	u := c.baseURL + "/" + method + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		apiErr.Message = er.Error.Message
		if len(er.Error.Errors) > 0 {
			apiErr.Reason = er.Error.Errors[0].Reason
		}
	}
	return apiErr
}
