package migrate

import (
	"context"
	"io"
	"log"
	"testing"

	"todo-overlay/internal/localstate"
	"todo-overlay/internal/model"
	"todo-overlay/internal/storage"
)

// fakeCloud is a storage.Provider whose Load and Save work on an
// in-memory snapshot.
type fakeCloud struct {
	snap      *model.Snapshot
	saveCalls int
	loadErr   error
}

func (f *fakeCloud) Mode() storage.Mode               { return storage.ModeCloud }
func (f *fakeCloud) IsAuthenticated() bool            { return true }
func (f *fakeCloud) CurrentUser() *storage.AuthUser   { return &storage.AuthUser{ID: "user-1"} }
func (f *fakeCloud) SyncStatus() storage.Status       { return storage.StatusSynced }
func (f *fakeCloud) Initialize(context.Context) error { return nil }

func (f *fakeCloud) Load(context.Context) (*model.Snapshot, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.snap.Clone(), nil
}

func (f *fakeCloud) Save(ctx context.Context, snap *model.Snapshot) error {
	f.saveCalls++
	f.snap = snap.Clone()
	return nil
}

func (f *fakeCloud) SignIn(context.Context, string, string) error  { return nil }
func (f *fakeCloud) SignUp(context.Context, string, string) error  { return nil }
func (f *fakeCloud) SignOut(context.Context) error                 { return nil }
func (f *fakeCloud) Subscribe(func(*model.Snapshot)) (storage.Unsubscribe, error) {
	return func() {}, nil
}
func (f *fakeCloud) Destroy() error { return nil }

func openLocal(t *testing.T) *localstate.Store {
	t.Helper()
	store, err := localstate.Open(t.TempDir(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func cloudSnapshot() *model.Snapshot {
	completed := int64(500)
	lists := []model.List{
		{ID: "default", Name: "My Tasks", CreatedAt: 1},
		{ID: "work", Name: "Work", CreatedAt: 2},
	}
	labels := []model.Label{
		{ID: "general", Name: "General", Color: model.ColorGray},
	}
	settings := model.DefaultSettings(lists, labels)
	return &model.Snapshot{
		Settings: settings,
		Tasks: []model.Task{
			{ID: "c-parent", Title: "Plan trip", ListID: "default", Starred: true,
				Priority: model.PriorityHigh, LabelID: "general", CreatedAt: 10},
			{ID: "c-child", Title: "Book flights", ListID: "default",
				ParentID: "c-parent", CreatedAt: 11, CompletedAt: &completed},
			{ID: "c-solo", Title: "Water plants", ListID: "work", CreatedAt: 12},
		},
	}
}

func TestRun_ToLocal_ReplaysEverything(t *testing.T) {
	cloud := &fakeCloud{snap: cloudSnapshot()}
	local := openLocal(t)

	err := Run(context.Background(), ToLocal, Config{Cloud: cloud, Local: local})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := local.LoadState()
	if len(snap.Tasks) != 3 {
		t.Fatalf("expected 3 migrated tasks, got %d", len(snap.Tasks))
	}
	if len(snap.Settings.Lists) != 2 {
		t.Fatalf("lists not migrated: %+v", snap.Settings.Lists)
	}

	byTitle := make(map[string]model.Task)
	for _, task := range snap.Tasks {
		byTitle[task.Title] = task
	}

	parent := byTitle["Plan trip"]
	if !parent.Starred || parent.Priority != model.PriorityHigh || parent.LabelID != "general" {
		t.Errorf("parent attributes lost: %+v", parent)
	}
	if parent.ID == "c-parent" {
		t.Errorf("migration should mint fresh local ids")
	}

	child := byTitle["Book flights"]
	if child.ParentID != parent.ID {
		t.Errorf("child should point at the migrated parent, got %q", child.ParentID)
	}
	if child.CompletedAt == nil {
		t.Errorf("completion state lost")
	}

	if byTitle["Water plants"].ListID != "work" {
		t.Errorf("list assignment lost: %+v", byTitle["Water plants"])
	}
}

func TestRun_ToCloud_SingleBulkSave(t *testing.T) {
	cloud := &fakeCloud{snap: &model.Snapshot{}}
	local := openLocal(t)
	if _, err := local.CreateTask("local task", "", nil, "", ""); err != nil {
		t.Fatal(err)
	}

	err := Run(context.Background(), ToCloud, Config{Cloud: cloud, Local: local})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cloud.saveCalls != 1 {
		t.Errorf("to-cloud should be one bulk save, got %d", cloud.saveCalls)
	}
	if len(cloud.snap.Tasks) != 1 || cloud.snap.Tasks[0].Title != "local task" {
		t.Errorf("cloud snapshot = %+v", cloud.snap.Tasks)
	}
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	cloud := &fakeCloud{snap: cloudSnapshot()}
	local := openLocal(t)

	var seen []int
	err := Run(context.Background(), ToLocal, Config{
		Cloud: cloud,
		Local: local,
		OnProgress: func(p int) {
			seen = append(seen, p)
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(seen) == 0 || seen[0] != 0 || seen[len(seen)-1] != 100 {
		t.Fatalf("progress should run 0..100, got %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("progress not strictly increasing: %v", seen)
		}
	}
}

func TestRun_UnknownDirection(t *testing.T) {
	cloud := &fakeCloud{snap: &model.Snapshot{}}
	local := openLocal(t)

	if err := Run(context.Background(), Direction("sideways"), Config{Cloud: cloud, Local: local}); err == nil {
		t.Errorf("unknown direction should fail")
	}
}

func TestRun_CloudLoadErrorSurfaces(t *testing.T) {
	cloud := &fakeCloud{loadErr: storage.ErrNotAuthenticated}
	local := openLocal(t)

	err := Run(context.Background(), ToLocal, Config{Cloud: cloud, Local: local})
	if err == nil {
		t.Fatal("Run should fail")
	}
	if !storage.NeedsReauth(err) {
		t.Errorf("auth failure should stay classifiable, got %v", err)
	}
}
