package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	log "github.com/sirupsen/logrus"
)

// DefaultFeedURL: RSS-лента канала YouTube.
const DefaultFeedURL = "https://www.youtube.com/feeds/videos.xml"

// FeedProvider ищет видео в RSS-лентах заданных каналов. Квоту Data API не расходует,
// но видит только последние ~15 видео каждого канала.
type FeedProvider struct {
	channelIDs []string
	client     *http.Client
	feedURL    string
}

var _ SearchProvider = (*FeedProvider)(nil)

// NewFeedProvider создаёт новый экземпляр.
func NewFeedProvider(channelIDs []string, client *http.Client, feedURL string) *FeedProvider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &FeedProvider{channelIDs: channelIDs, client: client, feedURL: feedURL}
}

// Search реализует SearchProvider. Ленты не поддерживают запросы, поэтому
// фильтрация по ключевому слову и дате идёт локально; результат всегда одна страница.
func (p *FeedProvider) Search(ctx context.Context, q SearchQuery) (SearchPage, error) {
	keywords := strings.Fields(strings.ToLower(q.Keyword))
	if len(keywords) == 0 {
		return SearchPage{}, nil
	}

	var after time.Time
	if q.PublishedAfter != "" {
		if t, err := time.Parse(time.RFC3339, q.PublishedAfter); err == nil {
			after = t
		}
	}

	limit := q.MaxResults
	if limit <= 0 {
		limit = MaxPageSize
	}

	parser := gofeed.NewParser()
	var page SearchPage
	var failed int
	var lastErr error

	for _, channelID := range p.channelIDs {
		if len(page.Items) >= limit {
			break
		}

		feed, err := p.fetch(ctx, parser, channelID)
		if err != nil {
			// При ошибке одной ленты продолжаем обработку других
			log.WithField("channel_id", channelID).WithError(err).Warn("channel feed failed")
			failed++
			lastErr = err
			continue
		}

		for _, it := range feed.Items {
			if len(page.Items) >= limit {
				break
			}
			id := feedVideoID(it)
			if id == "" {
				continue
			}
			description := mediaDescription(it)
			haystack := strings.ToLower(it.Title + " " + description)
			if !matchesAnyKeyword(haystack, keywords) {
				continue
			}
			if it.PublishedParsed == nil {
				continue
			}
			if !after.IsZero() && it.PublishedParsed.Before(after) {
				continue
			}

			item := SearchItem{Snippet: Snippet{
				Title:        strings.TrimSpace(it.Title),
				Description:  description,
				ChannelTitle: strings.TrimSpace(feed.Title),
				PublishedAt:  it.PublishedParsed.UTC().Format(time.RFC3339),
			}}
			item.ID.Kind = "youtube#video"
			item.ID.VideoID = id
			page.Items = append(page.Items, item)
		}
	}

	if failed > 0 && failed == len(p.channelIDs) {
		return SearchPage{}, fmt.Errorf("all %d channel feeds failed: %w", failed, lastErr)
	}
	return page, nil
}

func (p *FeedProvider) fetch(ctx context.Context, parser *gofeed.Parser, channelID string) (*gofeed.Feed, error) {
	u := p.feedURL + "?" + url.Values{"channel_id": {channelID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "channel feed " + channelID}
	}
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, errors.Join(errors.New("parse channel feed"), err)
	}
	return feed, nil
}

// feedVideoID достаёт id из yt:videoId, а при его отсутствии из GUID вида "yt:video:<id>".
func feedVideoID(it *gofeed.Item) string {
	if yt, ok := it.Extensions["yt"]; ok {
		if vals := yt["videoId"]; len(vals) > 0 && vals[0].Value != "" {
			return strings.TrimSpace(vals[0].Value)
		}
	}
	return strings.TrimPrefix(strings.TrimSpace(it.GUID), "yt:video:")
}

func mediaDescription(it *gofeed.Item) string {
	media, ok := it.Extensions["media"]
	if !ok {
		return it.Description
	}
	for _, group := range media["group"] {
		if desc := firstChild(group, "description"); desc != "" {
			return desc
		}
	}
	return it.Description
}

func firstChild(e ext.Extension, name string) string {
	if vals := e.Children[name]; len(vals) > 0 {
		return strings.TrimSpace(vals[0].Value)
	}
	return ""
}

func matchesAnyKeyword(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
