package postfeed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/maine/youtube_blog_worker/internal/video"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s := NewSink(filepath.Join(t.TempDir(), "out", "feed.atom"), "Test", "https://blog.example/")
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSink_Publish(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	first := video.Post{Title: "First", HTML: "<p>one</p>", VideoID: "a", VideoURL: video.URL("a"), Labels: []string{"Health"}}
	second := video.Post{Title: "Second", HTML: "<p>two</p>", VideoID: "b", VideoURL: video.URL("b")}

	id1, err := s.Publish(ctx, first)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	id2, err := s.Publish(ctx, second)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id1 != "id-1" || id2 != "id-2" {
		t.Errorf("ids = %q, %q", id1, id2)
	}

	f, err := os.Open(s.path)
	if err != nil {
		t.Fatalf("open feed: %v", err)
	}
	defer f.Close()
	feed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		t.Fatalf("parse feed: %v", err)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(feed.Items))
	}
	if feed.Items[0].Title != "Second" || feed.Items[1].Title != "First" {
		t.Errorf("order = %q, %q; newest must come first", feed.Items[0].Title, feed.Items[1].Title)
	}
	if feed.Items[1].GUID != "urn:uuid:id-1" {
		t.Errorf("GUID = %q", feed.Items[1].GUID)
	}
	if !strings.Contains(feed.Items[1].Content, "<p>one</p>") {
		t.Errorf("content = %q", feed.Items[1].Content)
	}
	if !strings.Contains(feed.Items[1].Description, "Labels: Health") {
		t.Errorf("summary = %q", feed.Items[1].Description)
	}
}

func TestSink_PublishRejectsEmptyTitle(t *testing.T) {
	s := newTestSink(t)
	if _, err := s.Publish(context.Background(), video.Post{HTML: "x"}); err == nil {
		t.Error("Publish() should fail on empty title")
	}
	if _, err := os.Stat(s.path); !os.IsNotExist(err) {
		t.Error("feed file should not be created")
	}
}
