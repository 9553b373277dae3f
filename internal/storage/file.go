package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sync"

	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

// fileStore keeps the whole container in memory and mirrors every committed
// mutation to disk via write-to-temp-then-rename. Readers concurrent with a
// write see either the pre- or the post-image, never a torn file.
//
// Mutations build the new image on a scratch copy first; the in-memory
// container only advances after the disk write succeeded, so a failed write
// preserves the last known-good state.
type fileStore struct {
	log  logx.Logger
	path string

	mu    sync.RWMutex
	tasks []task.Task // insertion order, ids unique
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &PersistenceError{Op: "mkdir", Err: err}
	}

	s := &fileStore{log: log, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.tasks = nil
			return nil
		}
		return &PersistenceError{Op: "read", Err: err}
	}
	if len(data) == 0 {
		s.tasks = nil
		return nil
	}
	var tasks []task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return &PersistenceError{Op: "decode", Err: err}
	}
	s.tasks = tasks
	return nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Create(ctx context.Context, t task.Task) (task.Task, error) {
	_ = ctx
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	t.ID = nextID(s.tasks)
	t.Status = task.StatusPending
	t.Delivered = ""
	t.CreatedAt = now
	t.UpdatedAt = now

	next := append(copyTasks(s.tasks), t)
	if err := s.persistLocked(next); err != nil {
		return task.Task{}, err
	}
	s.tasks = next
	return t, nil
}

func (s *fileStore) List(ctx context.Context, owner string) ([]task.Task, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if owner == "" || t.Owner == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fileStore) Update(ctx context.Context, id int64, owner string, p task.Patch) (bool, error) {
	_ = ctx
	if err := p.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.tasks {
		if t.ID == id && t.Owner == owner {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	next := copyTasks(s.tasks)
	p.Apply(&next[idx])
	next[idx].UpdatedAt = time.Now()
	if err := s.persistLocked(next); err != nil {
		return false, err
	}
	s.tasks = next
	return true, nil
}

func (s *fileStore) Delete(ctx context.Context, id int64, owner string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]task.Task, 0, len(s.tasks))
	found := false
	for _, t := range s.tasks {
		if t.ID == id && t.Owner == owner {
			found = true
			continue
		}
		next = append(next, t)
	}
	if !found {
		return false, nil
	}
	if err := s.persistLocked(next); err != nil {
		return false, err
	}
	s.tasks = next
	return true, nil
}

func (s *fileStore) Commit(ctx context.Context, results []task.Result) error {
	_ = ctx
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := copyTasks(s.tasks)
	changed := false
	for _, r := range results {
		for i := range next {
			if next[i].ID != r.ID {
				continue
			}
			// Only the fields the scheduler owns. A task deleted since the
			// snapshot simply isn't here anymore; that's fine.
			next[i].Status = r.Status
			if r.Marker != "" && next[i].Delivered == "" {
				next[i].Delivered = r.Marker
			}
			next[i].UpdatedAt = time.Now()
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.tasks = next
	return nil
}

func (s *fileStore) persistLocked(tasks []task.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &PersistenceError{Op: "write", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return &PersistenceError{Op: "rename", Err: err}
	}
	return nil
}

// nextID derives the id sequence from the container image itself, never
// from a cached counter, so restarts and concurrent writers can't collide.
func nextID(tasks []task.Task) int64 {
	var max int64
	for _, t := range tasks {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

func copyTasks(tasks []task.Task) []task.Task {
	return append([]task.Task(nil), tasks...)
}
