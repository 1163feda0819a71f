package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/video"
)

// FileBackend хранит историю в JSON-файле. Проверка версии защищает от потери
// изменений внутри одного хоста; для пересекающихся запусков на разных машинах
// нужен SQL или Redis.
type FileBackend struct {
	path  string
	clock func() time.Time
	mu    sync.Mutex
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend создаёт новый файловый бэкенд.
func NewFileBackend(path string, clock func() time.Time) *FileBackend {
	if clock == nil {
		clock = time.Now
	}
	return &FileBackend{path: path, clock: clock}
}

// Load читает историю из файла.
func (b *FileBackend) Load(ctx context.Context) (video.History, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read()
}

// Apply реализует Backend.
func (b *FileBackend) Apply(ctx context.Context, expectedVersion int64, diff Diff) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.read()
	if err != nil {
		return 0, err
	}
	if current.Version != expectedVersion {
		return 0, fmt.Errorf("%w: file at version %d, expected %d", ErrVersionConflict, current.Version, expectedVersion)
	}

	diff.ApplyTo(&current)
	current.Version++
	current.UpdatedAt = b.clock().UTC()

	if err := writeJSONAtomic(b.path, current); err != nil {
		return 0, err
	}
	return current.Version, nil
}

func (b *FileBackend) read() (video.History, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyHistory(), nil
		}
		return video.History{}, fmt.Errorf("read history file: %w", err)
	}

	history := emptyHistory()
	if err := json.Unmarshal(data, &history); err != nil {
		// Повреждённый файл сохраняем в .broken для диагностики и начинаем с пустой истории
		brokenPath := b.path + ".broken"
		_ = os.WriteFile(brokenPath, data, 0644)
		log.WithField("path", b.path).WithError(err).Error("history file is corrupted, starting empty")
		return emptyHistory(), nil
	}
	if history.Items == nil {
		history.Items = make(map[string]video.UsedItemRecord)
	}
	if history.NicheRuns == nil {
		history.NicheRuns = make(map[string]time.Time)
	}
	return history, nil
}

// writeJSONAtomic записывает значение через временный файл и rename.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	// Переименование атомарно на большинстве файловых систем
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
