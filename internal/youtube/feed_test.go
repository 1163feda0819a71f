package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const channelFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Frugal Channel</title>
 <entry>
  <id>yt:video:vid001</id>
  <yt:videoId>vid001</yt:videoId>
  <title>Budget Travel in Portugal</title>
  <published>2024-05-01T10:00:00+00:00</published>
  <media:group>
   <media:title>Budget Travel in Portugal</media:title>
   <media:description>How we spent 30 euros a day.</media:description>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:vid002</id>
  <yt:videoId>vid002</yt:videoId>
  <title>Cooking vlog</title>
  <published>2024-05-02T10:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:vid003</id>
  <yt:videoId>vid003</yt:videoId>
  <title>Old travel hacks</title>
  <published>2020-01-01T10:00:00+00:00</published>
 </entry>
</feed>`

func TestFeedProvider_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("channel_id") == "broken" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(channelFeed))
	}))
	defer srv.Close()

	p := NewFeedProvider([]string{"broken", "UC123"}, srv.Client(), srv.URL)
	page, err := p.Search(context.Background(), SearchQuery{
		Keyword:        "travel",
		PublishedAfter: "2023-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %+v, want only vid001", page.Items)
	}
	item := page.Items[0]
	if item.ID.VideoID != "vid001" || item.Snippet.ChannelTitle != "Frugal Channel" {
		t.Errorf("item = %+v", item)
	}
	if item.Snippet.Description != "How we spent 30 euros a day." {
		t.Errorf("description = %q", item.Snippet.Description)
	}
	if page.NextPageToken != "" {
		t.Error("feed provider must return a single page")
	}
}

func TestFeedProvider_AllFeedsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewFeedProvider([]string{"a", "b"}, srv.Client(), srv.URL)
	if _, err := p.Search(context.Background(), SearchQuery{Keyword: "travel"}); err == nil {
		t.Error("Search() error = nil, want error")
	}
}
