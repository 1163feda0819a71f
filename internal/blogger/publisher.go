package blogger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/config"
	"github.com/maine/youtube_blog_worker/internal/retry"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// ErrEmptyPost: пост без заголовка или содержимого не отправляем.
var ErrEmptyPost = errors.New("post title or content is empty")

// Publisher публикует готовые посты в Blogger с повторами временных ошибок.
type Publisher struct {
	client  BloggerClient
	blogID  string
	isDraft bool
	policy  retry.Policy
}

// NewPublisher создаёт новый экземпляр публикатора.
func NewPublisher(client BloggerClient, cfg config.Blogger, policy retry.Policy) *Publisher {
	return &Publisher{
		client:  client,
		blogID:  cfg.BlogID,
		isDraft: cfg.IsDraft,
		policy:  policy,
	}
}

// Publish отправляет пост и возвращает его id в Blogger.
func (p *Publisher) Publish(ctx context.Context, post video.Post) (string, error) {
	if strings.TrimSpace(post.Title) == "" || strings.TrimSpace(post.HTML) == "" {
		return "", ErrEmptyPost
	}

	input := PostInput{
		Kind:    "blogger#post",
		Title:   post.Title,
		Content: post.HTML,
		Labels:  post.Labels,
	}

	var created PostResource
	err := retry.Do(ctx, p.policy, "blogger.posts.insert", func(ctx context.Context) error {
		res, err := p.client.InsertPost(ctx, p.blogID, input, p.isDraft)
		if err != nil {
			return err
		}
		if res.ID == "" {
			return retry.Permanent(fmt.Errorf("posts.insert returned no id"))
		}
		created = res
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", post.VideoID, err)
	}

	log.WithFields(log.Fields{
		"post_id":  created.ID,
		"video_id": post.VideoID,
		"url":      created.URL,
		"draft":    p.isDraft,
	}).Info("Post published to Blogger")
	return created.ID, nil
}
