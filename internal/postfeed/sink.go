// Package postfeed: публикация постов в локальный Atom-файл вместо Blogger (DRY_RUN).
package postfeed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"
	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/video"
)

// maxEntries: сколько последних постов хранить в файле.
const maxEntries = 100

// Sink дописывает посты в Atom-ленту на диске.
type Sink struct {
	mu    sync.Mutex
	path  string
	title string
	link  string
	now   func() time.Time
	newID func() string
}

// NewSink создаёт новый экземпляр. link: адрес блога для заголовка ленты.
func NewSink(path, title, link string) *Sink {
	if title == "" {
		title = "Blog worker dry run"
	}
	return &Sink{
		path:  path,
		title: title,
		link:  link,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Publish добавляет пост в начало ленты и возвращает id записи.
func (s *Sink) Publish(ctx context.Context, post video.Post) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(post.Title) == "" {
		return "", errors.New("post title is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readItems()
	if err != nil {
		return "", err
	}

	id := s.newID()
	now := s.now().UTC()
	entry := &feeds.Item{
		Title:       post.Title,
		Link:        &feeds.Link{Href: post.VideoURL, Rel: "alternate", Type: "text/html"},
		Id:          "urn:uuid:" + id,
		Description: summary(post),
		Content:     post.HTML,
		Created:     now,
		Updated:     now,
	}
	items = append([]*feeds.Item{entry}, items...)
	if len(items) > maxEntries {
		items = items[:maxEntries]
	}

	feed := &feeds.Feed{
		Title:   s.title,
		Link:    &feeds.Link{Href: s.link, Rel: "self", Type: "text/html"},
		Id:      "urn:blogworker:dry-run",
		Created: now,
		Updated: now,
		Items:   items,
	}
	atom, err := feed.ToAtom()
	if err != nil {
		return "", fmt.Errorf("render atom: %w", err)
	}
	if err := writeFileAtomic(s.path, []byte(atom)); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{"entry_id": id, "video_id": post.VideoID, "path": s.path}).Info("Post written to dry-run feed")
	return id, nil
}

// readItems читает уже записанные посты. Отсутствующий файл: пустая лента.
func (s *Sink) readItems() ([]*feeds.Item, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	parsed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse existing feed %s: %w", s.path, err)
	}

	items := make([]*feeds.Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		item := &feeds.Item{
			Title:       it.Title,
			Link:        &feeds.Link{Href: it.Link, Rel: "alternate", Type: "text/html"},
			Id:          it.GUID,
			Description: it.Description,
			Content:     it.Content,
		}
		if it.PublishedParsed != nil {
			item.Created = *it.PublishedParsed
		}
		if it.UpdatedParsed != nil {
			item.Updated = *it.UpdatedParsed
		}
		items = append(items, item)
	}
	return items, nil
}

func summary(post video.Post) string {
	s := "Source: " + post.VideoURL
	if len(post.Labels) > 0 {
		s += " | Labels: " + strings.Join(post.Labels, ", ")
	}
	return s
}

func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create feed dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename feed: %w", err)
	}
	return nil
}
