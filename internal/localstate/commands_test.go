package localstate

import (
	"testing"

	"todo-overlay/internal/model"
)

func TestCreateTask(t *testing.T) {
	t.Run("trims title and details", func(t *testing.T) {
		s := newTestStore(t)
		snap, err := s.CreateTask("  Buy milk  ", "  2%  ", nil, "", "")
		if err != nil {
			t.Fatal(err)
		}
		if len(snap.Tasks) != 1 {
			t.Fatalf("expected 1 task, got %d", len(snap.Tasks))
		}
		task := snap.Tasks[0]
		if task.Title != "Buy milk" || task.Details != "2%" {
			t.Errorf("fields not trimmed: %+v", task)
		}
		if task.ID == "" || task.CreatedAt == 0 {
			t.Errorf("id/createdAt not stamped: %+v", task)
		}
		if task.ListID != model.DefaultListID {
			t.Errorf("ListID = %q, want active list %q", task.ListID, model.DefaultListID)
		}
	})

	t.Run("empty title is a no-op", func(t *testing.T) {
		s := newTestStore(t)
		snap, err := s.CreateTask("   ", "", nil, "", "")
		if err != nil {
			t.Fatal(err)
		}
		if len(snap.Tasks) != 0 {
			t.Errorf("blank title should not create a task")
		}
	})

	t.Run("unknown list falls back to active list", func(t *testing.T) {
		s := newTestStore(t)
		snap, err := s.CreateTask("task", "", nil, "", "no-such-list")
		if err != nil {
			t.Fatal(err)
		}
		if snap.Tasks[0].ListID != model.DefaultListID {
			t.Errorf("ListID = %q, want %q", snap.Tasks[0].ListID, model.DefaultListID)
		}
	})

	t.Run("parent must live in the target list", func(t *testing.T) {
		s := newTestStore(t)
		snap, err := s.CreateTask("parent", "", nil, "", "")
		if err != nil {
			t.Fatal(err)
		}
		parentID := snap.Tasks[0].ID

		snap, err = s.CreateTask("child", "", nil, parentID, "")
		if err != nil {
			t.Fatal(err)
		}
		if snap.Tasks[1].ParentID != parentID {
			t.Errorf("valid parent dropped: %+v", snap.Tasks[1])
		}

		snap, err = s.CreateTask("orphan", "", nil, "no-such-task", "")
		if err != nil {
			t.Fatal(err)
		}
		if snap.Tasks[2].ParentID != "" {
			t.Errorf("invalid parent should be dropped, got %q", snap.Tasks[2].ParentID)
		}
	})
}

func TestSetCompleted(t *testing.T) {
	s := newTestStore(t)
	snap, _ := s.CreateTask("task", "", nil, "", "")
	id := snap.Tasks[0].ID

	snap, err := s.SetCompleted(id, true)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Tasks[0].CompletedAt == nil {
		t.Fatalf("CompletedAt not stamped")
	}

	snap, err = s.SetCompleted(id, false)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Tasks[0].CompletedAt != nil {
		t.Errorf("CompletedAt not cleared")
	}
}

func TestSetPriority_RejectsUnknown(t *testing.T) {
	s := newTestStore(t)
	snap, _ := s.CreateTask("task", "", nil, "", "")

	if _, err := s.SetPriority(snap.Tasks[0].ID, "critical"); err == nil {
		t.Errorf("unknown priority should be rejected")
	}

	snap, err := s.SetPriority(snap.Tasks[0].ID, model.PriorityHigh)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Tasks[0].Priority != model.PriorityHigh {
		t.Errorf("priority not applied: %+v", snap.Tasks[0])
	}
}

func TestSetLabel(t *testing.T) {
	s := newTestStore(t)
	snap, _ := s.CreateTask("task", "", nil, "", "")
	id := snap.Tasks[0].ID

	t.Run("known label applied", func(t *testing.T) {
		snap, err := s.SetLabel(id, model.DefaultLabelID)
		if err != nil {
			t.Fatal(err)
		}
		if snap.Tasks[0].LabelID != model.DefaultLabelID {
			t.Errorf("LabelID = %q", snap.Tasks[0].LabelID)
		}
	})

	t.Run("unknown label ignored", func(t *testing.T) {
		snap, err := s.SetLabel(id, "no-such-label")
		if err != nil {
			t.Fatal(err)
		}
		if snap.Tasks[0].LabelID != model.DefaultLabelID {
			t.Errorf("unknown label should leave assignment untouched, got %q", snap.Tasks[0].LabelID)
		}
	})

	t.Run("empty id clears", func(t *testing.T) {
		snap, err := s.SetLabel(id, "")
		if err != nil {
			t.Fatal(err)
		}
		if snap.Tasks[0].LabelID != "" {
			t.Errorf("label not cleared: %q", snap.Tasks[0].LabelID)
		}
	})
}

func TestReorder(t *testing.T) {
	s := newTestStore(t)
	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		snap, err := s.CreateTask(title, "", nil, "", "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, snap.Tasks[len(snap.Tasks)-1].ID)
	}

	snap, err := s.Reorder([]string{ids[2], ids[0], "ghost"})
	if err != nil {
		t.Fatal(err)
	}

	byID := make(map[string]model.Task)
	for _, task := range snap.Tasks {
		byID[task.ID] = task
	}
	if byID[ids[2]].SortIndex == nil || *byID[ids[2]].SortIndex != 0 {
		t.Errorf("first reordered task should have index 0")
	}
	if byID[ids[0]].SortIndex == nil || *byID[ids[0]].SortIndex != 1 {
		t.Errorf("second reordered task should have index 1")
	}
	if byID[ids[1]].SortIndex != nil {
		t.Errorf("unlisted task should keep nil index")
	}
}

func TestDeleteTask_RemovesSubtree(t *testing.T) {
	s := newTestStore(t)
	snap, _ := s.CreateTask("root", "", nil, "", "")
	rootID := snap.Tasks[0].ID
	snap, _ = s.CreateTask("child", "", nil, rootID, "")
	childID := snap.Tasks[1].ID
	snap, _ = s.CreateTask("grandchild", "", nil, childID, "")
	snap, _ = s.CreateTask("bystander", "", nil, "", "")

	snap, err := s.DeleteTask(rootID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Title != "bystander" {
		t.Errorf("expected only bystander to survive, got %+v", snap.Tasks)
	}
}

func TestDeleteTask_UnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t)
	s.CreateTask("task", "", nil, "", "")

	snap, err := s.DeleteTask("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Tasks) != 1 {
		t.Errorf("unknown id deleted something: %+v", snap.Tasks)
	}
}

func TestClearHistory(t *testing.T) {
	s := newTestStore(t)
	snap, _ := s.CreateTask("done", "", nil, "", "")
	doneID := snap.Tasks[0].ID
	s.CreateTask("open", "", nil, "", "")
	if _, err := s.SetCompleted(doneID, true); err != nil {
		t.Fatal(err)
	}

	snap, err := s.ClearHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Title != "open" {
		t.Errorf("expected only the open task to remain, got %+v", snap.Tasks)
	}
}

func TestListCommands(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.CreateList("  Chores  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Settings.Lists) != 2 || snap.Settings.Lists[1].Name != "Chores" {
		t.Fatalf("list not created: %+v", snap.Settings.Lists)
	}
	listID := snap.Settings.Lists[1].ID

	snap, err = s.SetActiveList(listID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Settings.ActiveListID != listID {
		t.Errorf("active list not switched")
	}

	snap, err = s.SetActiveList("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Settings.ActiveListID != listID {
		t.Errorf("unknown active list id should be ignored")
	}

	snap, err = s.RenameList(listID, "Errands")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Settings.Lists[1].Name != "Errands" {
		t.Errorf("rename not applied: %+v", snap.Settings.Lists[1])
	}

	snap, err = s.RenameList(listID, "   ")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Settings.Lists[1].Name != "Errands" {
		t.Errorf("blank rename should keep the old name, got %q", snap.Settings.Lists[1].Name)
	}
}

func TestUpdateSettings_Sanitizes(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.UpdateSettings(model.Settings{ActiveListID: "gone"})
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Settings.Lists) != 1 {
		t.Fatalf("default list not materialized: %+v", snap.Settings.Lists)
	}
	if snap.Settings.ActiveListID != snap.Settings.Lists[0].ID {
		t.Errorf("active list should fall back to first list")
	}
}
