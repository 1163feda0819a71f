package youtube

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/maine/youtube_blog_worker/internal/retry"
)

// fakeSearchProvider отдаёт заранее заготовленные страницы по токену.
type fakeSearchProvider struct {
	pages   map[string]SearchPage
	errs    map[string]error
	queries []SearchQuery
}

func (f *fakeSearchProvider) Search(ctx context.Context, q SearchQuery) (SearchPage, error) {
	f.queries = append(f.queries, q)
	if err := f.errs[q.PageToken]; err != nil {
		return SearchPage{}, err
	}
	return f.pages[q.PageToken], nil
}

func pageOf(prefix string, n int, next string) SearchPage {
	page := SearchPage{NextPageToken: next}
	for i := 0; i < n; i++ {
		var item SearchItem
		item.ID.VideoID = fmt.Sprintf("%s%02d", prefix, i)
		item.Snippet.Title = "title " + item.ID.VideoID
		item.Snippet.PublishedAt = "2024-01-01T00:00:00Z"
		page.Items = append(page.Items, item)
	}
	return page
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Millisecond}
}

func TestSearcher_Search_ProviderExhausted(t *testing.T) {
	provider := &fakeSearchProvider{pages: map[string]SearchPage{
		"":   pageOf("a", 10, "p2"),
		"p2": pageOf("b", 10, ""),
	}}
	s := NewSearcher(provider, Filters{}, fastPolicy(), nil)

	got, err := s.Search(context.Background(), "budget travel", 30)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("Search() returned %d items, want 20", len(got))
	}
	if len(provider.queries) != 2 {
		t.Errorf("provider called %d times, want 2", len(provider.queries))
	}
	if provider.queries[0].MaxResults != 30 || provider.queries[1].MaxResults != 20 {
		t.Errorf("page sizes = %d, %d; want 30, 20", provider.queries[0].MaxResults, provider.queries[1].MaxResults)
	}
	if got[0].Keyword != "budget travel" || got[0].PublishedAt.IsZero() {
		t.Errorf("candidate not populated: %+v", got[0])
	}
}

func TestSearcher_Search_StopsAtMaxResults(t *testing.T) {
	provider := &fakeSearchProvider{pages: map[string]SearchPage{
		"":   pageOf("a", 10, "p2"),
		"p2": pageOf("b", 10, "p3"),
		"p3": pageOf("c", 10, ""),
	}}
	s := NewSearcher(provider, Filters{}, fastPolicy(), nil)

	got, err := s.Search(context.Background(), "k", 15)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 15 {
		t.Fatalf("Search() returned %d items, want 15", len(got))
	}
	if len(provider.queries) != 2 {
		t.Errorf("provider called %d times, want 2", len(provider.queries))
	}
}

func TestSearcher_Search_DropsDuplicates(t *testing.T) {
	provider := &fakeSearchProvider{pages: map[string]SearchPage{
		"":   pageOf("a", 5, "p2"),
		"p2": pageOf("a", 5, ""),
	}}
	s := NewSearcher(provider, Filters{}, fastPolicy(), nil)

	got, _ := s.Search(context.Background(), "k", 20)
	if len(got) != 5 {
		t.Errorf("Search() returned %d items, want 5 unique", len(got))
	}
}

func TestSearcher_Search_PageErrorReturnsPartial(t *testing.T) {
	provider := &fakeSearchProvider{
		pages: map[string]SearchPage{"": pageOf("a", 10, "p2")},
		errs:  map[string]error{"p2": &APIError{StatusCode: 503, Message: "backend"}},
	}
	s := NewSearcher(provider, Filters{}, fastPolicy(), nil)

	got, err := s.Search(context.Background(), "k", 20)
	if err == nil {
		t.Fatal("Search() error = nil, want error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("error %v does not wrap APIError", err)
	}
	if len(got) != 10 {
		t.Errorf("partial results = %d, want 10", len(got))
	}
	// 1 вызов первой страницы + 2 попытки второй
	if len(provider.queries) != 3 {
		t.Errorf("provider called %d times, want 3", len(provider.queries))
	}
}

func TestSearcher_Search_PermanentErrorNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "4xx", err: &APIError{StatusCode: 400, Message: "bad"}},
		{name: "malformed body", err: fmt.Errorf("decode: %w", errors.New("invalid character '<' looking for beginning of value"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeSearchProvider{errs: map[string]error{"": tt.err}}
			s := NewSearcher(provider, Filters{}, fastPolicy(), nil)

			if _, err := s.Search(context.Background(), "k", 10); err == nil {
				t.Fatal("Search() error = nil, want error")
			}
			if len(provider.queries) != 1 {
				t.Errorf("provider called %d times, want 1", len(provider.queries))
			}
		})
	}
}

func TestSearcher_Search_Filters(t *testing.T) {
	provider := &fakeSearchProvider{pages: map[string]SearchPage{"": pageOf("a", 1, "")}}
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	filters := Filters{License: "creativeCommon", Duration: "medium", Order: "viewCount", SafeSearch: "moderate", Embeddable: true, PublishedWithinDays: 10}
	s := NewSearcher(provider, filters, fastPolicy(), func() time.Time { return now })

	_, _ = s.Search(context.Background(), "k", 5)

	q := provider.queries[0]
	if q.License != "creativeCommon" || q.Duration != "medium" || q.Order != "viewCount" || !q.Embeddable {
		t.Errorf("filters not propagated: %+v", q)
	}
	if q.PublishedAfter != "2025-02-28T08:00:00Z" {
		t.Errorf("PublishedAfter = %q", q.PublishedAfter)
	}
}
