package store

import "testing"

func TestValidateUpdate(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		fields  map[string]interface{}
		wantErr bool
	}{
		{"Allowed column", "tasks", map[string]interface{}{"title": "x"}, false},
		{"Multiple allowed", "knowledge", map[string]interface{}{"title": "x", "content": "y"}, false},
		{"Identity column", "tasks", map[string]interface{}{"id": "evil"}, true},
		{"Provenance column", "tasks", map[string]interface{}{"created_at": "evil"}, true},
		{"Unknown column", "tasks", map[string]interface{}{"title": "x", "droptable": "y"}, true},
		{"Unknown table", "memories", map[string]interface{}{"content": "x"}, true},
		{"Empty fields", "tasks", map[string]interface{}{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpdate(tt.table, tt.fields)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUpdate(%s, %v) err=%v, wantErr=%v", tt.table, tt.fields, err, tt.wantErr)
			}
		})
	}
}

func TestUpdateRowRejectsBeforeSQL(t *testing.T) {
	s := newTestStore(t)

	task := &Task{Title: "original"}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Rejected update must leave the row untouched.
	if err := s.UpdateRow("tasks", task.ID, map[string]interface{}{
		"title": "changed", "id": "hijacked",
	}); err == nil {
		t.Fatal("Expected rejection for disallowed column")
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "original" {
		t.Errorf("Rejected update mutated the row: %+v", got)
	}

	if err := s.UpdateRow("tasks", task.ID, map[string]interface{}{"title": "renamed"}); err != nil {
		t.Fatalf("Valid update failed: %v", err)
	}
	got, _ = s.GetTask(task.ID)
	if got.Title != "renamed" {
		t.Errorf("Valid update did not apply: %+v", got)
	}

	if err := s.UpdateRow("tasks", "missing", map[string]interface{}{"title": "x"}); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for missing row, got %v", err)
	}
}
