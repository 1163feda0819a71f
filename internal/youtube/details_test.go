package youtube

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/maine/youtube_blog_worker/internal/scoring"
)

type fakeDetailProvider struct {
	items   map[string]VideoItem
	failOn  int // номер вызова (с 1), который всегда падает
	calls   int
	batches [][]string
}

func (f *fakeDetailProvider) Videos(ctx context.Context, ids []string) ([]VideoItem, error) {
	f.calls++
	f.batches = append(f.batches, append([]string(nil), ids...))
	if f.failOn > 0 && len(f.batches) >= f.failOn && len(f.batches) < f.failOn+2 {
		return nil, &APIError{StatusCode: 500, Message: "boom"}
	}
	var out []VideoItem
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func videoItem(id, duration, published string) VideoItem {
	item := VideoItem{ID: id}
	item.ContentDetails.Duration = duration
	item.Snippet.PublishedAt = published
	item.Snippet.Title = "video " + id
	item.Statistics.ViewCount = "1500"
	item.Status.Embeddable = true
	return item
}

func TestDetailFetcher_Batches(t *testing.T) {
	provider := &fakeDetailProvider{items: map[string]VideoItem{}}
	var ids []string
	for i := 0; i < 120; i++ {
		id := fmt.Sprintf("v%03d", i)
		ids = append(ids, id)
		provider.items[id] = videoItem(id, "PT12M", "2024-01-01T00:00:00Z")
	}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f := NewDetailFetcher(provider, scoring.FractionEstimator{Fraction: 0.7}, 50, fastPolicy(), func() time.Time { return now })

	got := f.FetchDetails(context.Background(), ids)
	if len(got) != 120 {
		t.Fatalf("FetchDetails() returned %d, want 120", len(got))
	}
	if len(provider.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(provider.batches))
	}
	if len(provider.batches[2]) != 20 {
		t.Errorf("last batch = %d ids, want 20", len(provider.batches[2]))
	}

	d := got["v000"]
	if d.DurationMinutes != 12 || d.ViewCount != 1500 || !d.Embeddable {
		t.Errorf("detail = %+v", d)
	}
	if d.EstimatedAverageViewMinutes < 8.39 || d.EstimatedAverageViewMinutes > 8.41 {
		t.Errorf("EstimatedAverageViewMinutes = %v, want 8.4", d.EstimatedAverageViewMinutes)
	}
	// 152 дня / 7
	if want := 152.0 / 7; d.AgeWeeks != want {
		t.Errorf("AgeWeeks = %v, want %v", d.AgeWeeks, want)
	}
}

func TestDetailFetcher_SkipsFailedBatch(t *testing.T) {
	provider := &fakeDetailProvider{items: map[string]VideoItem{}, failOn: 1}
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		provider.items[id] = videoItem(id, "PT10M", "2024-01-01T00:00:00Z")
	}
	f := NewDetailFetcher(provider, nil, 2, fastPolicy(), nil)

	got := f.FetchDetails(context.Background(), ids)
	if len(got) != 1 {
		t.Fatalf("FetchDetails() returned %d, want 1 (first batch skipped)", len(got))
	}
	if _, ok := got["c"]; !ok {
		t.Errorf("expected c from the second batch, got %v", got)
	}
}

func TestDetailFetcher_DropsUnscorable(t *testing.T) {
	provider := &fakeDetailProvider{items: map[string]VideoItem{
		"ok":       videoItem("ok", "PT9M30S", "2024-01-01T00:00:00Z"),
		"live":     videoItem("live", "P0D", "2024-01-01T00:00:00Z"),
		"garbage":  videoItem("garbage", "ten minutes", "2024-01-01T00:00:00Z"),
		"bad-date": videoItem("bad-date", "PT10M", "yesterday"),
	}}
	f := NewDetailFetcher(provider, nil, 50, fastPolicy(), nil)

	got := f.FetchDetails(context.Background(), []string{"ok", "live", "garbage", "bad-date", "missing"})
	if len(got) != 1 {
		t.Fatalf("FetchDetails() = %v, want only ok", got)
	}
	if got["ok"].DurationMinutes != 9.5 {
		t.Errorf("DurationMinutes = %v, want 9.5", got["ok"].DurationMinutes)
	}
}
