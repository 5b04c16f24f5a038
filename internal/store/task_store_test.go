package store

import "testing"

func seedTasks(t *testing.T, s *Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		task := &Task{Title: string(rune('A' + i))}
		if err := s.CreateTask(task); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
		ids = append(ids, task.ID)
	}
	return ids
}

func queueIDs(t *testing.T, s *Store) []string {
	t.Helper()
	queued, err := s.QueueList()
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	ids := make([]string, len(queued))
	for i, task := range queued {
		ids[i] = task.ID
		if task.QueuePosition == nil || *task.QueuePosition != i+1 {
			t.Errorf("Queue positions not contiguous at index %d: %+v", i, task)
		}
	}
	return ids
}

func TestQueuePushShiftsTail(t *testing.T) {
	s := newTestStore(t)
	ids := seedTasks(t, s, 4)

	// Build queue A, B, C by appending.
	for _, id := range ids[:3] {
		status, err := s.QueuePush(id, 0)
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if status != "queued" {
			t.Fatalf("Expected queued, got %s", status)
		}
	}

	// Insert D at position 2: A, D, B, C.
	if _, err := s.QueuePush(ids[3], 2); err != nil {
		t.Fatalf("Insert push failed: %v", err)
	}

	got := queueIDs(t, s)
	want := []string{ids[0], ids[3], ids[1], ids[2]}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Queue order wrong: got %v, want %v", got, want)
		}
	}
}

func TestQueuePushConflictAndValidation(t *testing.T) {
	s := newTestStore(t)
	ids := seedTasks(t, s, 2)

	if _, err := s.QueuePush(ids[0], 0); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	status, err := s.QueuePush(ids[0], 0)
	if err != nil {
		t.Fatalf("Re-push should not error: %v", err)
	}
	if status != "already_queued" {
		t.Errorf("Expected already_queued, got %s", status)
	}

	if err := s.UpdateTask(ids[1], map[string]interface{}{"status": TaskDone}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if _, err := s.QueuePush(ids[1], 0); err == nil {
		t.Error("Expected error queueing a done task")
	}

	if _, err := s.QueuePush("missing", 0); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestQueuePopClosesGap(t *testing.T) {
	s := newTestStore(t)
	ids := seedTasks(t, s, 3)
	for _, id := range ids {
		if _, err := s.QueuePush(id, 0); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	popped, err := s.QueuePop()
	if err != nil {
		t.Fatalf("Pop failed: %v", err)
	}
	if popped.ID != ids[0] {
		t.Errorf("Expected to pop head %s, got %s", ids[0], popped.ID)
	}
	if popped.QueuePosition != nil {
		t.Error("Popped task should have nil queue position")
	}

	got := queueIDs(t, s)
	if len(got) != 2 || got[0] != ids[1] || got[1] != ids[2] {
		t.Errorf("Queue after pop wrong: %v", got)
	}
}

func TestQueuePopEmpty(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.QueuePop(); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound on empty queue, got %v", err)
	}
}

func TestDoneTaskLeavesQueue(t *testing.T) {
	s := newTestStore(t)
	ids := seedTasks(t, s, 3)
	for _, id := range ids {
		if _, err := s.QueuePush(id, 0); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	// Complete the middle task; gap must close.
	if err := s.UpdateTask(ids[1], map[string]interface{}{"status": TaskDone}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	got := queueIDs(t, s)
	if len(got) != 2 || got[0] != ids[0] || got[1] != ids[2] {
		t.Errorf("Queue after completion wrong: %v", got)
	}

	done, err := s.GetTask(ids[1])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if done.Status != TaskDone || done.QueuePosition != nil {
		t.Errorf("Done task state wrong: %+v", done)
	}
}
