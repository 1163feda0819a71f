// Package state хранит историю использованных видео и расписание ниш.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/maine/youtube_blog_worker/internal/video"
)

var (
	// ErrVersionConflict: историю успел изменить другой запуск.
	ErrVersionConflict = errors.New("history version conflict")
	// ErrWriteDeferred: запись отложена до следующего запуска (diff сохранён в pending-файл).
	ErrWriteDeferred = errors.New("history write deferred")
)

// Backend: внешнее хранилище истории.
type Backend interface {
	// Load возвращает текущий снимок истории.
	Load(ctx context.Context) (video.History, error)
	// Apply применяет diff, если версия хранилища равна expectedVersion, и возвращает новую версию.
	// При несовпадении версии возвращает ErrVersionConflict.
	Apply(ctx context.Context, expectedVersion int64, diff Diff) (int64, error)
}

// Diff: накопленные за запуск изменения истории.
type Diff struct {
	Upserts   []video.UsedItemRecord `json:"upserts,omitempty"`
	Deletes   []string               `json:"deletes,omitempty"`
	NicheRuns map[string]time.Time   `json:"niche_runs,omitempty"`
}

// Empty сообщает, что применять нечего.
func (d Diff) Empty() bool {
	return len(d.Upserts) == 0 && len(d.Deletes) == 0 && len(d.NicheRuns) == 0
}

// ApplyTo накладывает diff на снимок. Для уже существующей записи сохраняется
// более ранний FirstUsed, так что параллельные запуски не сдвигают дату первого использования.
func (d Diff) ApplyTo(h *video.History) {
	if h.Items == nil {
		h.Items = make(map[string]video.UsedItemRecord)
	}
	if h.NicheRuns == nil {
		h.NicheRuns = make(map[string]time.Time)
	}

	for _, id := range d.Deletes {
		delete(h.Items, id)
	}
	for _, rec := range d.Upserts {
		if prev, ok := h.Items[rec.ID]; ok && !prev.FirstUsed.IsZero() && prev.FirstUsed.Before(rec.FirstUsed) {
			rec.FirstUsed = prev.FirstUsed
		}
		h.Items[rec.ID] = rec
	}
	for niche, at := range d.NicheRuns {
		if prev, ok := h.NicheRuns[niche]; !ok || at.After(prev) {
			h.NicheRuns[niche] = at
		}
	}
}

func emptyHistory() video.History {
	return video.History{
		Items:     make(map[string]video.UsedItemRecord),
		NicheRuns: make(map[string]time.Time),
	}
}
