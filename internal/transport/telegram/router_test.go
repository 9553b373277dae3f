package telegram

import (
	"context"
	"strings"
	"testing"

	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

type fakeStore struct {
	created []task.Task
	tasks   []task.Task
	patches map[int64]task.Patch
	deleted []int64
}

func (f *fakeStore) Create(_ context.Context, t task.Task) (task.Task, error) {
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	t.ID = int64(len(f.created) + 1)
	t.Status = task.StatusPending
	f.created = append(f.created, t)
	return t, nil
}

func (f *fakeStore) List(_ context.Context, owner string) ([]task.Task, error) {
	var out []task.Task
	for _, t := range f.tasks {
		if owner == "" || t.Owner == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, id int64, owner string, p task.Patch) (bool, error) {
	for _, t := range f.tasks {
		if t.ID == id && t.Owner == owner {
			if f.patches == nil {
				f.patches = map[int64]task.Patch{}
			}
			f.patches[id] = p
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64, owner string) (bool, error) {
	for _, t := range f.tasks {
		if t.ID == id && t.Owner == owner {
			f.deleted = append(f.deleted, id)
			return true, nil
		}
	}
	return false, nil
}

type fakeFlusher struct {
	owner string
	n     int
}

func (f *fakeFlusher) FlushPending(_ context.Context, owner string) (int, error) {
	f.owner = owner
	return f.n, nil
}

func newTestRouter(store *fakeStore, flush *fakeFlusher) *Router {
	if flush == nil {
		flush = &fakeFlusher{}
	}
	return NewRouter(store, flush, logx.Nop())
}

func TestCmdAdd(t *testing.T) {
	st := &fakeStore{}
	r := newTestRouter(st, nil)

	reply, err := r.cmdAdd(context.Background(), "42", "2026-09-01 08:30 Meeting | weekly sync")
	if err != nil {
		t.Fatalf("cmdAdd: %v", err)
	}
	if !strings.Contains(reply, "#1") {
		t.Fatalf("reply = %q", reply)
	}
	got := st.created[0]
	if got.Date != "2026-09-01" || got.Time != "08:30" || got.Timezone != "" {
		t.Fatalf("created = %+v", got)
	}
	if got.Title != "Meeting" || got.Description != "weekly sync" || got.Owner != "42" {
		t.Fatalf("created = %+v", got)
	}
}

func TestCmdAddWithTimezone(t *testing.T) {
	st := &fakeStore{}
	r := newTestRouter(st, nil)

	_, err := r.cmdAdd(context.Background(), "42", "2026-09-01 08:30 Asia/Jakarta Meeting | sync")
	if err != nil {
		t.Fatalf("cmdAdd: %v", err)
	}
	if got := st.created[0]; got.Timezone != "Asia/Jakarta" || got.Title != "Meeting" {
		t.Fatalf("created = %+v", got)
	}
}

func TestCmdAddTitleWithSlashIsNotAZone(t *testing.T) {
	st := &fakeStore{}
	r := newTestRouter(st, nil)

	_, err := r.cmdAdd(context.Background(), "42", "2026-09-01 08:30 A/B testing | review results")
	if err != nil {
		t.Fatalf("cmdAdd: %v", err)
	}
	if got := st.created[0]; got.Timezone != "" || got.Title != "A/B testing" {
		t.Fatalf("created = %+v", got)
	}
}

func TestCmdAddUsage(t *testing.T) {
	r := newTestRouter(&fakeStore{}, nil)
	reply, err := r.cmdAdd(context.Background(), "42", "2026-09-01")
	if err != nil {
		t.Fatalf("cmdAdd: %v", err)
	}
	if !strings.Contains(reply, "Format:") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestCmdEdit(t *testing.T) {
	st := &fakeStore{tasks: []task.Task{{ID: 3, Owner: "42", Title: "x", Status: task.StatusDone}}}
	r := newTestRouter(st, nil)

	reply, err := r.cmdEdit(context.Background(), "42", "3 date=2026-10-01 resend title=new name")
	if err != nil {
		t.Fatalf("cmdEdit: %v", err)
	}
	if !strings.Contains(reply, "updated") {
		t.Fatalf("reply = %q", reply)
	}
	p := st.patches[3]
	if p.Date == nil || *p.Date != "2026-10-01" {
		t.Fatalf("patch = %+v", p)
	}
	if p.Title == nil || *p.Title != "new name" {
		t.Fatalf("patch = %+v", p)
	}
	if p.Status == nil || *p.Status != task.StatusPending || !p.ResetDelivery {
		t.Fatalf("patch = %+v", p)
	}
}

func TestCmdEditUnknownField(t *testing.T) {
	st := &fakeStore{tasks: []task.Task{{ID: 3, Owner: "42"}}}
	r := newTestRouter(st, nil)

	reply, err := r.cmdEdit(context.Background(), "42", "3 color=red")
	if err != nil {
		t.Fatalf("cmdEdit: %v", err)
	}
	if !strings.Contains(reply, "Unknown field") {
		t.Fatalf("reply = %q", reply)
	}
	if len(st.patches) != 0 {
		t.Fatal("store touched for a bad edit")
	}
}

func TestCmdEditNotFound(t *testing.T) {
	r := newTestRouter(&fakeStore{}, nil)
	reply, err := r.cmdEdit(context.Background(), "42", "9 date=2026-10-01")
	if err != nil {
		t.Fatalf("cmdEdit: %v", err)
	}
	if !strings.Contains(reply, "not found") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestCmdDelete(t *testing.T) {
	st := &fakeStore{tasks: []task.Task{{ID: 5, Owner: "42"}}}
	r := newTestRouter(st, nil)

	if reply, _ := r.cmdDelete(context.Background(), "42", "5"); !strings.Contains(reply, "deleted") {
		t.Fatalf("reply = %q", reply)
	}
	if reply, _ := r.cmdDelete(context.Background(), "42", "99"); !strings.Contains(reply, "not found") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestCmdFlushScopesToSender(t *testing.T) {
	fl := &fakeFlusher{n: 2}
	r := newTestRouter(&fakeStore{}, fl)

	reply, err := r.cmdFlush(context.Background(), "42")
	if err != nil {
		t.Fatalf("cmdFlush: %v", err)
	}
	if fl.owner != "42" {
		t.Fatalf("flush owner = %q", fl.owner)
	}
	if !strings.Contains(reply, "2") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestCmdList(t *testing.T) {
	st := &fakeStore{tasks: []task.Task{
		{ID: 1, Owner: "42", Title: "a", Date: "2026-09-01", Time: "08:00", Status: task.StatusPending},
		{ID: 2, Owner: "42", Title: "b", Date: "2026-09-02", Time: "09:00", Status: task.StatusDone, Timezone: "Asia/Jakarta"},
		{ID: 3, Owner: "7", Title: "other", Date: "2026-09-03", Time: "10:00", Status: task.StatusPending},
	}}
	r := newTestRouter(st, nil)

	reply, err := r.cmdList(context.Background(), "42")
	if err != nil {
		t.Fatalf("cmdList: %v", err)
	}
	if !strings.Contains(reply, "[ ] #1 a") || !strings.Contains(reply, "[x] #2 b") {
		t.Fatalf("reply = %q", reply)
	}
	if strings.Contains(reply, "other") {
		t.Fatalf("reply leaked another owner: %q", reply)
	}
}
