package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/retry"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// mockGeminiClient - мок для тестирования Writer и Labeler
type mockGeminiClient struct {
	generateTextFunc func(ctx context.Context, model string, prompt string) (string, error)
}

func (m *mockGeminiClient) GenerateText(ctx context.Context, model string, prompt string) (string, error) {
	if m.generateTextFunc != nil {
		return m.generateTextFunc(ctx, model, prompt)
	}
	return "", errors.New("not implemented")
}

func postRequest() PostRequest {
	return PostRequest{
		Niche: config.Niche{
			Key:      "weight_loss",
			Name:     "Weight Loss",
			Offers:   []config.Offer{{Name: "Java Burn", URL: "https://example.com/jb"}},
			SoftCTAs: []string{"Want a gentle nudge?"},
		},
		Video: video.Detail{
			ID:           "abc",
			Title:        "How I Lost 10kg",
			ChannelTitle: "Fit Channel",
			PublishedAt:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		},
		Transcript: "so today we are going to talk about calorie deficit",
		MinWords:   900,
	}
}

func TestWriter_Write(t *testing.T) {
	tests := []struct {
		name     string
		mockFunc func(ctx context.Context, model string, prompt string) (string, error)
		want     string
		wantErr  error
	}{
		{
			name: "plain html",
			mockFunc: func(ctx context.Context, model string, prompt string) (string, error) {
				return "<h2>Intro</h2><p>Body</p>", nil
			},
			want: "<h2>Intro</h2><p>Body</p>",
		},
		{
			name: "fenced html",
			mockFunc: func(ctx context.Context, model string, prompt string) (string, error) {
				return "```html\n<h2>Intro</h2>\n```", nil
			},
			want: "<h2>Intro</h2>",
		},
		{
			name: "empty response",
			mockFunc: func(ctx context.Context, model string, prompt string) (string, error) {
				return "  ```\n```  ", nil
			},
			wantErr: ErrEmptyPost,
		},
		{
			name: "quota error",
			mockFunc: func(ctx context.Context, model string, prompt string) (string, error) {
				return "", ErrQuotaExceeded
			},
			wantErr: ErrQuotaExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(&mockGeminiClient{generateTextFunc: tt.mockFunc}, config.Gemini{ModelPost: "gemini-test"})
			got, err := w.Write(context.Background(), postRequest())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Write() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Write() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriter_Prompt(t *testing.T) {
	var gotModel, gotPrompt string
	client := &mockGeminiClient{generateTextFunc: func(ctx context.Context, model string, prompt string) (string, error) {
		gotModel, gotPrompt = model, prompt
		return "<p>ok</p>", nil
	}}

	if _, err := NewWriter(client, config.Gemini{ModelPost: "gemini-test"}).Write(context.Background(), postRequest()); err != nil {
		t.Fatal(err)
	}
	if gotModel != "gemini-test" {
		t.Errorf("model = %q", gotModel)
	}
	for _, want := range []string{
		"Weight Loss", "At least 900 words", `"How I Lost 10kg" by Fit Channel, published 2024-03-05`,
		"- Java Burn: https://example.com/jb", "- Want a gentle nudge?", "calorie deficit",
	} {
		if !strings.Contains(gotPrompt, want) {
			t.Errorf("prompt does not contain %q", want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("привет", 3); got != "при" {
		t.Errorf("truncateRunes() = %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("truncateRunes() = %q", got)
	}
}

func TestLabeler_Label(t *testing.T) {
	allowed := []string{"Fitness", "Nutrition", "Weight Loss", "Recipes", "Motivation"}

	tests := []struct {
		name     string
		allowed  []string
		response string
		err      error
		want     []string
	}{
		{"few labels skip the model", allowed[:2], "", errors.New("must not be called"), []string{"Fitness", "Nutrition"}},
		{"picked from list", allowed, "```json\n[\"nutrition\", \"Recipes\", \"Unknown\"]\n```", nil, []string{"Nutrition", "Recipes"}},
		{"model error falls back", allowed, "", errors.New("503"), []string{"Fitness", "Nutrition", "Weight Loss"}},
		{"garbage falls back", allowed, "I think Fitness", nil, []string{"Fitness", "Nutrition", "Weight Loss"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockGeminiClient{generateTextFunc: func(ctx context.Context, model string, prompt string) (string, error) {
				return tt.response, tt.err
			}}
			got := NewLabeler(client, "m").Label(context.Background(), "title", "body", tt.allowed)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Label() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg       string
		permanent bool
	}{
		{"Error 503, Message: The model is overloaded", false},
		{"Error 429, Message: Resource exhausted", false},
		{"Error 429: Quota exceeded for metric generate_content_free_tier_requests", true},
		{"Error 400, Message: API key not valid", true},
	}
	for _, tt := range tests {
		err := classify(errors.New(tt.msg))
		if got := retry.IsPermanent(err); got != tt.permanent {
			t.Errorf("classify(%q) permanent = %v, want %v", tt.msg, got, tt.permanent)
		}
	}

	if retry.IsPermanent(classify(genai.APIError{Code: 500, Message: "internal", Status: "INTERNAL"})) {
		t.Error("APIError 500 must be retried")
	}
	if !retry.IsPermanent(classify(errors.New("unexpected end of JSON input"))) {
		t.Error("unclassified SDK error must not be retried")
	}
}
