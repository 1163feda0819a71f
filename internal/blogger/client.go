package blogger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL: адрес Blogger API v3.
	DefaultBaseURL = "https://www.googleapis.com/blogger/v3"
	// Scope: OAuth2 scope с правом записи в блог.
	Scope = "https://www.googleapis.com/auth/blogger"
	// TokenURL: endpoint обмена refresh token.
	TokenURL = "https://oauth2.googleapis.com/token"
)

// BloggerClient определяет интерфейс для работы с Blogger API.
type BloggerClient interface {
	InsertPost(ctx context.Context, blogID string, post PostInput, isDraft bool) (PostResource, error)
}

// PostInput: тело запроса posts.insert.
type PostInput struct {
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Labels  []string `json:"labels,omitempty"`
}

// PostResource: часть ответа posts.insert, которая нам нужна.
type PostResource struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// APIError: ошибка ответа Blogger API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("blogger api status %d: %s", e.StatusCode, e.Message)
}

// Temporary: 429 и 5xx повторяем, остальные 4xx нет.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client инкапсулирует работу с Blogger API.
type Client struct {
	client  *http.Client
	baseURL string
}

// Убеждаемся, что Client реализует интерфейс BloggerClient.
var _ BloggerClient = (*Client)(nil)

// NewClient создаёт клиента поверх уже авторизованного http.Client.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewOAuthHTTPClient возвращает http.Client, который сам обновляет access token по refresh token.
func NewOAuthHTTPClient(ctx context.Context, clientID, clientSecret, refreshToken string) *http.Client {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: TokenURL},
		Scopes:       []string{Scope},
	}
	return cfg.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

// InsertPost вызывает posts.insert и возвращает созданный пост.
func (c *Client) InsertPost(ctx context.Context, blogID string, post PostInput, isDraft bool) (PostResource, error) {
	if post.Kind == "" {
		post.Kind = "blogger#post"
	}
	data, err := json.Marshal(post)
	if err != nil {
		return PostResource{}, err
	}

	u := fmt.Sprintf("%s/blogs/%s/posts?isDraft=%s", c.baseURL, url.PathEscape(blogID), strconv.FormatBool(isDraft))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return PostResource{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return PostResource{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return PostResource{}, decodeAPIError(resp)
	}

	var out PostResource
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PostResource{}, fmt.Errorf("decode posts.insert response: %w", err)
	}
	return out, nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var er struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
