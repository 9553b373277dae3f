package storage

import (
	"context"
	"path/filepath"
	"testing"

	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

func newFileStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func mustCreate(t *testing.T, st Store, owner, title string) task.Task {
	t.Helper()
	created, err := st.Create(context.Background(), task.Task{
		Date:        "2026-09-01",
		Time:        "09:00",
		Title:       title,
		Description: "d",
		Owner:       owner,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created
}

func TestFileStoreCreateAssignsIDs(t *testing.T) {
	st, _ := newFileStore(t)
	ctx := context.Background()

	a := mustCreate(t, st, "1", "a")
	b := mustCreate(t, st, "1", "b")
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d", a.ID, b.ID)
	}
	if a.Status != task.StatusPending || a.Delivered != "" {
		t.Fatalf("created task = %+v", a)
	}

	// Deleting the max id must not recycle it downward past remaining rows.
	if ok, err := st.Delete(ctx, b.ID, "1"); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	c := mustCreate(t, st, "1", "c")
	if c.ID != 2 {
		t.Fatalf("id after delete = %d, want 2", c.ID)
	}
}

func TestFileStoreCreateRejectsInvalid(t *testing.T) {
	st, _ := newFileStore(t)
	_, err := st.Create(context.Background(), task.Task{Owner: "1"})
	if _, ok := err.(*task.ValidationError); !ok {
		t.Fatalf("err = %v, want *task.ValidationError", err)
	}
}

func TestFileStoreOwnerScoping(t *testing.T) {
	st, _ := newFileStore(t)
	ctx := context.Background()

	mine := mustCreate(t, st, "alice", "mine")
	mustCreate(t, st, "bob", "his")

	got, err := st.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("List(alice) = %+v", got)
	}

	all, err := st.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List(all) = %d tasks", len(all))
	}

	// Touching another owner's task is a soft miss, not an error.
	title := "stolen"
	if ok, err := st.Update(ctx, mine.ID, "bob", task.Patch{Title: &title}); err != nil || ok {
		t.Fatalf("cross-owner Update: ok=%v err=%v", ok, err)
	}
	if ok, err := st.Delete(ctx, mine.ID, "bob"); err != nil || ok {
		t.Fatalf("cross-owner Delete: ok=%v err=%v", ok, err)
	}
	if ok, err := st.Delete(ctx, 999, "alice"); err != nil || ok {
		t.Fatalf("missing Delete: ok=%v err=%v", ok, err)
	}
}

func TestFileStoreReloadFromDisk(t *testing.T) {
	st, path := newFileStore(t)
	ctx := context.Background()

	created := mustCreate(t, st, "1", "persisted")
	if err := st.Commit(ctx, []task.Result{{ID: created.ID, Status: task.StatusDone, Marker: "m-1"}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	again, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()

	got, err := again.List(ctx, "1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List = %d tasks", len(got))
	}
	if got[0].Status != task.StatusDone || got[0].Delivered != "m-1" {
		t.Fatalf("reloaded task = %+v", got[0])
	}
}

func TestFileStoreCommitTouchesOnlySchedulerFields(t *testing.T) {
	st, _ := newFileStore(t)
	ctx := context.Background()

	created := mustCreate(t, st, "1", "before")

	// A user edit lands between the scheduler's snapshot and its commit.
	title := "after"
	if ok, err := st.Update(ctx, created.ID, "1", task.Patch{Title: &title}); err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}

	if err := st.Commit(ctx, []task.Result{{ID: created.ID, Status: task.StatusDone, Marker: "m-1"}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, _ := st.List(ctx, "1")
	if got[0].Title != "after" {
		t.Fatalf("Title = %q, user edit lost", got[0].Title)
	}
	if got[0].Status != task.StatusDone || got[0].Delivered != "m-1" {
		t.Fatalf("committed task = %+v", got[0])
	}
}

func TestFileStoreCommitKeepsFirstMarker(t *testing.T) {
	st, _ := newFileStore(t)
	ctx := context.Background()

	created := mustCreate(t, st, "1", "once")
	if err := st.Commit(ctx, []task.Result{{ID: created.ID, Status: task.StatusDone, Marker: "first"}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := st.Commit(ctx, []task.Result{{ID: created.ID, Status: task.StatusDone, Marker: "second"}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, _ := st.List(ctx, "1")
	if got[0].Delivered != "first" {
		t.Fatalf("Delivered = %q, want first", got[0].Delivered)
	}
}

func TestFileStoreCommitIgnoresDeletedTask(t *testing.T) {
	st, _ := newFileStore(t)
	ctx := context.Background()

	created := mustCreate(t, st, "1", "gone")
	if ok, _ := st.Delete(ctx, created.ID, "1"); !ok {
		t.Fatal("Delete failed")
	}
	if err := st.Commit(ctx, []task.Result{{ID: created.ID, Status: task.StatusDone, Marker: "m"}}); err != nil {
		t.Fatalf("Commit after delete: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
