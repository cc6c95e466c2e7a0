package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Progress records the resume position of an ingestion run: the number
// of fully processed pages, the card offset within the page in flight,
// and the cumulative card count.
type Progress struct {
	Page       int       `json:"page"`
	Offset     int       `json:"offset"`
	TotalCards int       `json:"total_cards"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// tracker is a mutex-guarded progress tracker with periodic atomic
// saves. A crash loses at most saveEvery cards of redundant re-fetch
// work.
type tracker struct {
	mu        sync.Mutex
	progress  Progress
	path      string
	saveEvery int
	dirty     bool
	logger    *zap.Logger
}

// newTracker loads prior progress from path if present.
func newTracker(path string, saveEvery int, logger *zap.Logger) (*tracker, error) {
	t := &tracker{path: path, saveEvery: saveEvery, logger: logger}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &t.progress); err != nil {
			return nil, fmt.Errorf("parse progress %s: %w", path, err)
		}
		logger.Info("Resuming ingestion from saved progress",
			zap.Int("page", t.progress.Page),
			zap.Int("offset", t.progress.Offset),
			zap.Int("total_cards", t.progress.TotalCards),
		)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read progress %s: %w", path, err)
	}

	return t, nil
}

// Get returns a copy of the current progress.
func (t *tracker) Get() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Advance moves the position to (page, offset) after processed more
// cards were committed, saving whenever the cumulative count crosses a
// saveEvery boundary.
func (t *tracker) Advance(page, offset, processed int) {
	t.mu.Lock()
	t.progress.Page = page
	t.progress.Offset = offset
	t.progress.TotalCards += processed
	t.progress.UpdatedAt = time.Now()
	t.dirty = true
	shouldSave := t.progress.TotalCards%t.saveEvery < processed
	t.mu.Unlock()

	if shouldSave {
		t.forceSave()
	}
}

// PageDone marks a page fully processed.
func (t *tracker) PageDone(page int) {
	t.mu.Lock()
	t.progress.Page = page
	t.progress.Offset = 0
	t.progress.UpdatedAt = time.Now()
	t.dirty = true
	t.mu.Unlock()
	t.forceSave()
}

// forceSave writes the progress file via tmp+rename so a crash never
// leaves a torn file.
func (t *tracker) forceSave() {
	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return
	}
	data, err := json.MarshalIndent(t.progress, "", "  ")
	if err != nil {
		t.mu.Unlock()
		t.logger.Error("Progress marshal failed", zap.Error(err))
		return
	}
	t.dirty = false
	t.mu.Unlock()

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		t.logger.Error("Progress write failed", zap.Error(err))
		t.markDirty()
		return
	}
	if err := os.Rename(tmp, t.path); err != nil {
		t.logger.Error("Progress rename failed", zap.Error(err))
		t.markDirty()
	}
}

func (t *tracker) markDirty() {
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
}

// Clear removes the progress file after a successful full run.
func (t *tracker) Clear() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove progress: %w", err)
	}
	return nil
}
