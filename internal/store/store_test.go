package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/nandy/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if s.Driver() != DriverSQLite {
		t.Errorf("Expected driver sqlite, got %s", s.Driver())
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("Expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestPersonCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	p := &models.Person{Name: "unit", Email: "unit@test.com"}
	if err := s.CreatePerson(ctx, p); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("Person ID should be assigned")
	}

	got, err := s.GetPerson(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPerson failed: %v", err)
	}
	if got.Email != "unit@test.com" {
		t.Errorf("Expected email unit@test.com, got %s", got.Email)
	}

	byName, err := s.FindPersonByName(ctx, "unit")
	if err != nil || byName.ID != p.ID {
		t.Errorf("FindPersonByName = %v, %v", byName, err)
	}
	byEmail, err := s.FindPersonByEmail(ctx, "unit@test.com")
	if err != nil || byEmail.ID != p.ID {
		t.Errorf("FindPersonByEmail = %v, %v", byEmail, err)
	}

	p.Name = "renamed"
	if err := s.UpdatePerson(ctx, p); err != nil {
		t.Fatalf("UpdatePerson failed: %v", err)
	}
	persons, err := s.ListPersons(ctx)
	if err != nil {
		t.Fatalf("ListPersons failed: %v", err)
	}
	if len(persons) != 1 || persons[0].Name != "renamed" {
		t.Errorf("Expected one renamed person, got %+v", persons)
	}

	if err := s.DeletePerson(ctx, p.ID); err != nil {
		t.Fatalf("DeletePerson failed: %v", err)
	}
	if _, err := s.GetPerson(ctx, p.ID); !IsNotFound(err) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
	if err := s.DeletePerson(ctx, p.ID); !IsNotFound(err) {
		t.Errorf("Expected not found deleting twice, got %v", err)
	}
}

func TestDeletePersonWithRecords(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()
	p := newTestPerson(t, s)

	todo := &models.ToDo{Record: models.Record{PersonID: p.ID, Name: "Dishes", Status: "opened"}}
	if err := s.CreateToDo(ctx, todo); err != nil {
		t.Fatalf("CreateToDo failed: %v", err)
	}

	if err := s.DeletePerson(ctx, p.ID); !errors.Is(err, ErrInUse) {
		t.Fatalf("Expected ErrInUse deleting a person with todos, got %v", err)
	}
	if _, err := s.GetPerson(ctx, p.ID); err != nil {
		t.Errorf("Expected person to survive refused delete, got %v", err)
	}

	if err := s.DeleteToDo(ctx, todo.ID); err != nil {
		t.Fatalf("DeleteToDo failed: %v", err)
	}
	if err := s.DeletePerson(ctx, p.ID); err != nil {
		t.Errorf("Expected delete to succeed once the person owns nothing, got %v", err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	orphan := &models.Area{Record: models.Record{PersonID: "no-such-person", Name: "Kitchen", Status: "positive"}}
	if err := s.CreateArea(context.Background(), orphan); err == nil {
		t.Fatal("Expected creating an area for a missing person to fail")
	}
}

func TestFindPersonAmbiguous(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.CreatePerson(ctx, &models.Person{Name: "twin"}); err != nil {
			t.Fatalf("CreatePerson failed: %v", err)
		}
	}

	if _, err := s.FindPersonByName(ctx, "twin"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Expected ErrAmbiguous, got %v", err)
	}
	if _, err := s.FindPersonByName(ctx, "nobody"); !IsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTemplateCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	tmpl := &models.Template{
		Name: "morning",
		Kind: models.KindRoutine,
		Data: map[string]any{"text": "wake up", "tasks": []any{map[string]any{"text": "stretch"}}},
	}
	if err := s.CreateTemplate(ctx, tmpl); err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}
	if err := s.CreateTemplate(ctx, &models.Template{Name: "dishes", Kind: models.KindToDo, Data: map[string]any{}}); err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	got, err := s.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if got.Data["text"] != "wake up" {
		t.Errorf("Expected text 'wake up', got %v", got.Data["text"])
	}
	if tasks, _ := got.Data["tasks"].([]any); len(tasks) != 1 {
		t.Errorf("Expected one task, got %v", got.Data["tasks"])
	}

	routines, err := s.ListTemplates(ctx, models.KindRoutine)
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(routines) != 1 {
		t.Errorf("Expected 1 routine template, got %d", len(routines))
	}
	all, err := s.ListTemplates(ctx, "")
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(all) != 2 || all[0].Name != "dishes" {
		t.Errorf("Expected 2 templates ordered by name, got %+v", all)
	}

	got.Name = "evening"
	if err := s.UpdateTemplate(ctx, got); err != nil {
		t.Fatalf("UpdateTemplate failed: %v", err)
	}
	if err := s.DeleteTemplate(ctx, tmpl.ID); err != nil {
		t.Fatalf("DeleteTemplate failed: %v", err)
	}
	if _, err := s.GetTemplate(ctx, tmpl.ID); !IsNotFound(err) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
}

func TestRecordCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()
	p := newTestPerson(t, s)

	todo := &models.ToDo{Record: models.Record{
		PersonID: p.ID,
		Name:     "Dishes",
		Status:   "opened",
		Created:  1,
		Updated:  1,
		Data:     models.Payload{Text: "do the dishes", Extra: map[string]any{"color": "blue"}},
	}}
	if err := s.CreateToDo(ctx, todo); err != nil {
		t.Fatalf("CreateToDo failed: %v", err)
	}

	got, err := s.GetToDo(ctx, todo.ID)
	if err != nil {
		t.Fatalf("GetToDo failed: %v", err)
	}
	if got.Data.Text != "do the dishes" {
		t.Errorf("Expected text round trip, got %q", got.Data.Text)
	}
	if got.Data.Extra["color"] != "blue" {
		t.Errorf("Expected extra keys to survive, got %v", got.Data.Extra)
	}

	got.Status = "closed"
	got.Data.End = models.Float(5)
	if err := s.UpdateToDo(ctx, got); err != nil {
		t.Fatalf("UpdateToDo failed: %v", err)
	}
	again, err := s.GetToDo(ctx, todo.ID)
	if err != nil {
		t.Fatalf("GetToDo failed: %v", err)
	}
	if again.Status != "closed" || !again.Data.Done() {
		t.Errorf("Expected closed and done, got %s %+v", again.Status, again.Data.Flags)
	}

	if err := s.DeleteToDo(ctx, todo.ID); err != nil {
		t.Fatalf("DeleteToDo failed: %v", err)
	}
	if err := s.UpdateToDo(ctx, got); !IsNotFound(err) {
		t.Errorf("Expected not found updating a deleted todo, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()
	p := newTestPerson(t, s)
	other := &models.Person{Name: "other"}
	if err := s.CreatePerson(ctx, other); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}

	routines := []models.Routine{
		{Record: models.Record{PersonID: p.ID, Name: "Morning", Status: "opened", Created: 1}},
		{Record: models.Record{PersonID: p.ID, Name: "Evening", Status: "closed", Created: 2}},
		{Record: models.Record{PersonID: other.ID, Name: "Morning", Status: "opened", Created: 3}},
	}
	for i := range routines {
		if err := s.CreateRoutine(ctx, &routines[i]); err != nil {
			t.Fatalf("CreateRoutine failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{routines[2].ID, routines[1].ID, routines[0].ID}},
		{"by person", Filter{PersonID: p.ID}, []string{routines[1].ID, routines[0].ID}},
		{"by status", Filter{Status: "opened"}, []string{routines[2].ID, routines[0].ID}},
		{"by name and person", Filter{PersonID: p.ID, Name: "Morning"}, []string{routines[0].ID}},
		{"no match", Filter{Name: "Noon"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListRoutines(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRoutines failed: %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, ids)
					break
				}
			}
		})
	}
}

func TestAreasOrderByName(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()
	p := newTestPerson(t, s)

	for _, name := range []string{"Kitchen", "Bedroom"} {
		if err := s.CreateArea(ctx, &models.Area{Record: models.Record{PersonID: p.ID, Name: name, Status: "positive"}}); err != nil {
			t.Fatalf("CreateArea failed: %v", err)
		}
	}
	areas, err := s.ListAreas(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListAreas failed: %v", err)
	}
	if len(areas) != 2 || areas[0].Name != "Bedroom" {
		t.Errorf("Expected areas ordered by name, got %+v", areas)
	}
}

func TestRunInTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()
	p := newTestPerson(t, s)

	boom := errors.New("boom")
	var id string
	err := s.RunInTx(ctx, func(tx *Tx) error {
		act := &models.Act{Record: models.Record{PersonID: p.ID, Name: "Lied", Status: "negative"}}
		if err := tx.CreateAct(ctx, act); err != nil {
			return err
		}
		id = act.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if _, err := s.GetAct(ctx, id); !IsNotFound(err) {
		t.Errorf("Expected act to be rolled back, got %v", err)
	}

	err = s.RunInTx(ctx, func(tx *Tx) error {
		act := &models.Act{Record: models.Record{PersonID: p.ID, Name: "Helped", Status: "positive"}}
		id = ""
		if err := tx.CreateAct(ctx, act); err != nil {
			return err
		}
		id = act.ID
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
	if _, err := s.GetAct(ctx, id); err != nil {
		t.Errorf("Expected committed act, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	q := &queries{driver: DriverPostgres}
	got := q.rebind(`UPDATE t SET a = ?, b = ? WHERE id = ?`)
	if got != `UPDATE t SET a = $1, b = $2 WHERE id = $3` {
		t.Errorf("Unexpected postgres query: %s", got)
	}

	q = &queries{driver: DriverSQLite}
	if got := q.rebind(`SELECT ?`); got != `SELECT ?` {
		t.Errorf("Expected sqlite query unchanged, got %s", got)
	}
}

func TestPDR(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if _, err := s.WritePDR(ctx, models.KindToDo, "complete", "abc123", "updated", "todo-1", ""); err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}
	if _, err := s.WritePDR(ctx, models.KindToDo, "complete", "abc123", "noop", "todo-1", ""); err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}
	if _, err := s.WritePDR(ctx, models.KindArea, "right", "def456", "error", "area-1", "boom"); err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}

	entries, err := s.ListPDR(ctx, "todo-1")
	if err != nil {
		t.Fatalf("ListPDR failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Kind != models.KindToDo || e.EntityID != "todo-1" {
			t.Errorf("Unexpected entry %+v", e)
		}
	}

	entries, err = s.ListPDR(ctx, "area-1")
	if err != nil {
		t.Fatalf("ListPDR failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Details != "boom" {
		t.Errorf("Expected one area entry with details, got %+v", entries)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Ping(ctx)
	if err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func newTestPerson(t *testing.T, s *Store) *models.Person {
	t.Helper()
	p := &models.Person{Name: "unit", Email: "unit@test.com"}
	if err := s.CreatePerson(context.Background(), p); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}
	return p
}
