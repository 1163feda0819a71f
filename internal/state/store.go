package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maine/youtube_blog_worker/internal/retry"
	"github.com/maine/youtube_blog_worker/internal/video"
)

// nicheGrace поглощает дрожание расписания cron: запуск через 23:59 после
// предыдущего для ежедневной ниши всё ещё считается своевременным.
const nicheGrace = time.Hour

// Options настраивает Store.
type Options struct {
	Clock       func() time.Time
	TTL         time.Duration // 0: записи не удаляются
	PendingPath string        // Куда откладывать diff при неудачной записи; пусто: не откладывать
	Retry       retry.Policy
}

// Store: история использованных видео. Загружается один раз при старте,
// изменяется в памяти и записывается одним diff в Flush.
type Store struct {
	backend Backend
	opts    Options

	mu         sync.Mutex
	history    video.History
	dirty      map[string]struct{}
	deleted    map[string]struct{}
	nicheDirty map[string]struct{}
}

// Open загружает историю и подмешивает отложенный с прошлого запуска diff.
func Open(ctx context.Context, backend Backend, opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	var history video.History
	err := retry.Do(ctx, opts.Retry, "load history", func(ctx context.Context) error {
		var err error
		history, err = backend.Load(ctx)
		return retry.Transient(err)
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if history.Items == nil {
		history.Items = make(map[string]video.UsedItemRecord)
	}
	if history.NicheRuns == nil {
		history.NicheRuns = make(map[string]time.Time)
	}

	s := &Store{
		backend:    backend,
		opts:       opts,
		history:    history,
		dirty:      make(map[string]struct{}),
		deleted:    make(map[string]struct{}),
		nicheDirty: make(map[string]struct{}),
	}

	pending, err := s.readPending()
	if err != nil {
		log.WithField("path", opts.PendingPath).WithError(err).Warn("pending history diff ignored")
	} else if !pending.Empty() {
		s.absorb(pending)
		log.WithFields(log.Fields{
			"upserts": len(pending.Upserts),
			"deletes": len(pending.Deletes),
		}).Info("Merged pending history diff from previous run")
	}
	return s, nil
}

// IsUsed сообщает, выбиралось ли видео раньше.
func (s *Store) IsUsed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.history.Items[id]
	return ok
}

// Record возвращает запись истории.
func (s *Store) Record(id string) (video.UsedItemRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history.Items[id]
	return rec, ok
}

// Len возвращает количество записей.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history.Items)
}

// MarkUsed добавляет или обновляет запись. Повторный вызов для того же id не создаёт
// дубликат: FirstUsed сохраняется, LastUpdated и остальные поля обновляются.
func (s *Store) MarkUsed(id, niche, tier string, score float64, postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Clock().UTC()
	rec, ok := s.history.Items[id]
	if !ok {
		rec = video.UsedItemRecord{ID: id, FirstUsed: now}
	}
	rec.Niche = niche
	rec.Tier = tier
	rec.LastUpdated = now
	rec.Score = score
	if postID != "" {
		rec.PostID = postID
	}
	s.history.Items[id] = rec
	s.dirty[id] = struct{}{}
	delete(s.deleted, id)
}

// IsStale сообщает, что запись старше интервала обновления своего уровня.
// Для неизвестного id возвращает false: обновлять нечего.
func (s *Store) IsStale(id string, refreshDays int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history.Items[id]
	if !ok {
		return false
	}
	return s.isStale(rec, refreshDays)
}

func (s *Store) isStale(rec video.UsedItemRecord, refreshDays int) bool {
	interval := time.Duration(refreshDays) * 24 * time.Hour
	return s.opts.Clock().Sub(rec.LastUpdated) > interval
}

// StaleIDs возвращает устаревшие записи ниши в порядке id.
func (s *Store) StaleIDs(niche string, refreshDays int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, rec := range s.history.Items {
		if rec.Niche == niche && s.isStale(rec, refreshDays) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Touch отмечает запись как обновлённую и сохраняет пересчитанный балл.
func (s *Store) Touch(id string, score float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history.Items[id]
	if !ok {
		return false
	}
	rec.LastUpdated = s.opts.Clock().UTC()
	rec.Score = score
	s.history.Items[id] = rec
	s.dirty[id] = struct{}{}
	return true
}

// NicheDue сообщает, пора ли снова запускать нишу.
func (s *Store) NicheDue(niche string, refreshDays int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.history.NicheRuns[niche]
	if !ok || last.IsZero() {
		return true
	}
	interval := time.Duration(refreshDays)*24*time.Hour - nicheGrace
	return s.opts.Clock().Sub(last) > interval
}

// LastNicheRun возвращает время последнего запуска ниши.
func (s *Store) LastNicheRun(niche string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.NicheRuns[niche]
}

// MarkNicheRun запоминает время запуска ниши.
func (s *Store) MarkNicheRun(niche string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.NicheRuns[niche] = s.opts.Clock().UTC()
	s.nicheDirty[niche] = struct{}{}
}

// ExcludeSet возвращает копию множества использованных id.
func (s *Store) ExcludeSet() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]struct{}, len(s.history.Items))
	for id := range s.history.Items {
		set[id] = struct{}{}
	}
	return set
}

// Flush записывает накопленные изменения одним diff. При конфликте версий
// перечитывает историю и повторяет один раз. Если запись так и не удалась,
// diff сохраняется в pending-файл и возвращается ErrWriteDeferred: выбор
// текущего запуска остаётся в силе, запись повторится при следующем Open.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict()
	diff := s.diff()
	if diff.Empty() {
		return nil
	}

	version, err := s.apply(ctx, s.history.Version, diff)
	if errors.Is(err, ErrVersionConflict) {
		log.WithError(err).Warn("History changed by another run, reloading")
		var fresh video.History
		fresh, err = s.backend.Load(ctx)
		if err == nil {
			version, err = s.apply(ctx, fresh.Version, diff)
			if err == nil {
				diff.ApplyTo(&fresh)
				s.history = fresh
			}
		}
	}

	if err != nil {
		if spoolErr := s.writePending(diff); spoolErr != nil {
			return fmt.Errorf("%w: %v (spool failed: %v)", ErrWriteDeferred, err, spoolErr)
		}
		return fmt.Errorf("%w: %v", ErrWriteDeferred, err)
	}

	s.history.Version = version
	s.history.UpdatedAt = s.opts.Clock().UTC()
	s.dirty = make(map[string]struct{})
	s.deleted = make(map[string]struct{})
	s.nicheDirty = make(map[string]struct{})
	s.removePending()
	return nil
}

func (s *Store) apply(ctx context.Context, expected int64, diff Diff) (int64, error) {
	var version int64
	err := retry.Do(ctx, s.opts.Retry, "apply history", func(ctx context.Context) error {
		var err error
		version, err = s.backend.Apply(ctx, expected, diff)
		if errors.Is(err, ErrVersionConflict) {
			return retry.Permanent(err)
		}
		// Сбои хранилища считаем временными: их причина (блокировка, сеть, диск) обычно проходит
		return retry.Transient(err)
	})
	return version, err
}

// evict удаляет записи, чей FirstUsed старше TTL.
func (s *Store) evict() {
	if s.opts.TTL <= 0 {
		return
	}
	cutoff := s.opts.Clock().Add(-s.opts.TTL)
	for id, rec := range s.history.Items {
		if rec.FirstUsed.Before(cutoff) {
			delete(s.history.Items, id)
			delete(s.dirty, id)
			s.deleted[id] = struct{}{}
		}
	}
}

func (s *Store) diff() Diff {
	var d Diff
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d.Upserts = append(d.Upserts, s.history.Items[id])
	}
	for id := range s.deleted {
		d.Deletes = append(d.Deletes, id)
	}
	sort.Strings(d.Deletes)
	if len(s.nicheDirty) > 0 {
		d.NicheRuns = make(map[string]time.Time, len(s.nicheDirty))
		for niche := range s.nicheDirty {
			d.NicheRuns[niche] = s.history.NicheRuns[niche]
		}
	}
	return d
}

// absorb применяет отложенный diff к истории в памяти и помечает его к записи.
func (s *Store) absorb(d Diff) {
	d.ApplyTo(&s.history)
	for _, rec := range d.Upserts {
		s.dirty[rec.ID] = struct{}{}
		delete(s.deleted, rec.ID)
	}
	for _, id := range d.Deletes {
		if _, ok := s.history.Items[id]; !ok {
			s.deleted[id] = struct{}{}
		}
	}
	for niche := range d.NicheRuns {
		s.nicheDirty[niche] = struct{}{}
	}
}

func (s *Store) readPending() (Diff, error) {
	if s.opts.PendingPath == "" {
		return Diff{}, nil
	}
	data, err := os.ReadFile(s.opts.PendingPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Diff{}, nil
		}
		return Diff{}, err
	}
	var d Diff
	if err := json.Unmarshal(data, &d); err != nil {
		_ = os.WriteFile(s.opts.PendingPath+".broken", data, 0644)
		_ = os.Remove(s.opts.PendingPath)
		return Diff{}, fmt.Errorf("decode pending diff: %w", err)
	}
	return d, nil
}

func (s *Store) writePending(d Diff) error {
	if s.opts.PendingPath == "" {
		return errors.New("pending path not configured")
	}
	return writeJSONAtomic(s.opts.PendingPath, d)
}

func (s *Store) removePending() {
	if s.opts.PendingPath == "" {
		return
	}
	if err := os.Remove(s.opts.PendingPath); err != nil && !os.IsNotExist(err) {
		log.WithField("path", s.opts.PendingPath).WithError(err).Warn("failed to remove pending history diff")
	}
}
