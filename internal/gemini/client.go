package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/maine/youtube_blog_worker/internal/retry"
)

// ErrQuotaExceeded: дневной лимит исчерпан, повторять в этом запуске бессмысленно.
var ErrQuotaExceeded = errors.New("gemini quota exceeded")

// GeminiClient определяет интерфейс для работы с Gemini API.
// Это позволяет легко создавать моки для тестирования.
type GeminiClient interface {
	GenerateText(ctx context.Context, model string, prompt string) (string, error)
}

// Client инкапсулирует работу с Gemini API через официальный SDK.
type Client struct {
	client      *genai.Client
	temperature float32
	policy      retry.Policy
}

// Убеждаемся, что Client реализует интерфейс GeminiClient.
var _ GeminiClient = (*Client)(nil)

// NewClient создаёт новый клиент для работы с Gemini API.
func NewClient(ctx context.Context, apiKey string, temperature float32, policy retry.Policy) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	// Создаём конфигурацию с явно указанным API ключом
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		client:      client,
		temperature: temperature,
		policy:      policy,
	}, nil
}

// GenerateText отправляет запрос к Gemini API и возвращает текстовый ответ.
// Лимиты RPM/TPM и ошибки 5xx повторяются по политике retry, дневная квота и прочие ошибки: нет.
func (c *Client) GenerateText(ctx context.Context, model string, prompt string) (string, error) {
	var text string
	err := retry.Do(ctx, c.policy, "gemini generate", func(ctx context.Context) error {
		temp := c.temperature
		result, err := c.client.Models.GenerateContent(
			ctx,
			model,
			genai.Text(prompt),
			&genai.GenerateContentConfig{Temperature: &temp},
		)
		if err != nil {
			return classify(err)
		}
		text = result.Text()
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// classify помечает ошибку SDK как временную или окончательную.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code >= 500 {
		return retry.Transient(fmt.Errorf("generate content: %w", err))
	}

	errStr := err.Error()
	switch {
	case isRPDQuotaError(errStr):
		log.WithError(err).Error("Gemini daily quota exceeded, stopping retries")
		return retry.Permanent(fmt.Errorf("%w: %v", ErrQuotaExceeded, err))
	case isRateLimitError(errStr), isServiceUnavailableError(errStr), isTemporaryError(errStr):
		return retry.Transient(fmt.Errorf("generate content: %w", err))
	case isQuotaExceededError(errStr):
		return retry.Permanent(fmt.Errorf("%w: %v", ErrQuotaExceeded, err))
	default:
		return retry.Permanent(fmt.Errorf("generate content: %w", err))
	}
}

// isRPDQuotaError проверяет, является ли ошибка 429 связанной с дневным лимитом запросов.
func isRPDQuotaError(errStr string) bool {
	errLower := strings.ToLower(errStr)
	if !strings.Contains(errLower, "429") {
		return false
	}
	return strings.Contains(errLower, "per day") ||
		strings.Contains(errLower, "perday") ||
		strings.Contains(errLower, "generate_content_free_tier_requests")
}

// isRateLimitError: 429 без признаков дневного лимита (RPM/TPM).
func isRateLimitError(errStr string) bool {
	if isRPDQuotaError(errStr) {
		return false
	}
	errLower := strings.ToLower(errStr)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "429") ||
		strings.Contains(errLower, "too many requests") ||
		strings.Contains(errLower, "resource exhausted")
}

// isServiceUnavailableError: модель перегружена (503).
func isServiceUnavailableError(errStr string) bool {
	errLower := strings.ToLower(errStr)
	return strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "service unavailable") ||
		strings.Contains(errLower, "overloaded")
}

// isTemporaryError: 500, 502, 504.
func isTemporaryError(errStr string) bool {
	errLower := strings.ToLower(errStr)
	return strings.Contains(errLower, "500") ||
		strings.Contains(errLower, "502") ||
		strings.Contains(errLower, "504") ||
		strings.Contains(errLower, "internal server error") ||
		strings.Contains(errLower, "bad gateway") ||
		strings.Contains(errLower, "gateway timeout")
}

func isQuotaExceededError(errStr string) bool {
	errLower := strings.ToLower(errStr)
	return strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "daily limit")
}
