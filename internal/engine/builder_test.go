package engine

import (
	"testing"

	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) build(kind models.Kind, req BuildRequest) (*models.Record, error) {
	var rec *models.Record
	err := f.store.RunInTx(f.ctx, func(tx *store.Tx) (err error) {
		rec, err = f.eng.Begin(tx).Build(f.ctx, kind, req)
		return err
	})
	return rec, err
}

func TestBuildMergePrecedence(t *testing.T) {
	f := newFixture(t)

	tmpl := &models.Template{
		Name: "Unit",
		Kind: models.KindToDo,
		Data: map[string]any{
			"text":   "template",
			"name":   "from template",
			"nested": map[string]any{"a": 1.0, "b": 2.0},
		},
	}
	require.NoError(t, f.store.CreateTemplate(f.ctx, tmpl))

	rec, err := f.build(models.KindToDo, BuildRequest{
		TemplateID: tmpl.ID,
		PersonID:   f.person.ID,
		Data: map[string]any{
			"text":   "data",
			"nested": map[string]any{"b": 3.0},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "from template", rec.Name)
	assert.Equal(t, "data", rec.Data.Text)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 3.0}, rec.Data.Extra["nested"])
	assert.Equal(t, "opened", rec.Status)
	assert.Equal(t, 7.0, rec.Created)
	assert.Equal(t, 7.0, rec.Updated)

	// the stored template is untouched
	got, err := f.store.GetTemplate(f.ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, got.Data["nested"])
}

func TestBuildInlineTemplateWinsOverID(t *testing.T) {
	f := newFixture(t)
	rec, err := f.build(models.KindToDo, BuildRequest{
		Template:   map[string]any{"text": "inline"},
		TemplateID: "does-not-exist",
		PersonID:   f.person.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "inline", rec.Data.Text)
}

func TestBuildUnknownTemplate(t *testing.T) {
	f := newFixture(t)
	_, err := f.build(models.KindToDo, BuildRequest{TemplateID: "nope", PersonID: f.person.ID})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBuildScalarPromotion(t *testing.T) {
	f := newFixture(t)

	rec, err := f.build(models.KindArea, BuildRequest{
		Template: map[string]any{
			"person_id": f.person.ID,
			"name":      "template",
			"status":    "negative",
			"created":   3,
		},
		Name: "kwarg",
	})
	require.NoError(t, err)
	assert.Equal(t, f.person.ID, rec.PersonID)
	assert.Equal(t, "kwarg", rec.Name)
	assert.Equal(t, "negative", rec.Status)
	assert.Equal(t, 3.0, rec.Created)
	assert.Equal(t, 3.0, rec.Updated)
	assert.NotContains(t, rec.Data.Extra, "person_id")
	assert.NotContains(t, rec.Data.Extra, "created")

	rec, err = f.build(models.KindArea, BuildRequest{
		PersonID: f.person.ID,
		Created:  models.Float(4),
		Updated:  models.Float(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "positive", rec.Status)
	assert.Equal(t, 4.0, rec.Created)
	assert.Equal(t, 5.0, rec.Updated)
}

func TestBuildPersonResolution(t *testing.T) {
	f := newFixture(t)

	rec, err := f.build(models.KindToDo, BuildRequest{Template: map[string]any{"person": "unit"}})
	require.NoError(t, err)
	assert.Equal(t, f.person.ID, rec.PersonID)
	assert.Equal(t, "unit", rec.Data.Person)

	rec, err = f.build(models.KindToDo, BuildRequest{Email: "unit@test.com"})
	require.NoError(t, err)
	assert.Equal(t, f.person.ID, rec.PersonID)

	_, err = f.build(models.KindToDo, BuildRequest{Template: map[string]any{"person": "nonexistent"}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.build(models.KindToDo, BuildRequest{PersonID: "nonexistent"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.build(models.KindToDo, BuildRequest{})
	assert.ErrorIs(t, err, ErrNoPerson)

	require.NoError(t, f.store.CreatePerson(f.ctx, &models.Person{Name: "unit", Email: "twin@test.com"}))
	_, err = f.build(models.KindToDo, BuildRequest{Template: map[string]any{"person": "unit"}})
	assert.ErrorIs(t, err, store.ErrAmbiguous)
}

func TestBuildRoutine(t *testing.T) {
	f := newFixture(t)

	rec, err := f.build(models.KindRoutine, BuildRequest{
		PersonID: f.person.ID,
		Data: map[string]any{
			"tasks": []any{
				map[string]any{"text": "do it"},
				map[string]any{"text": "moo it", "id": 1},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "opened", rec.Status)
	assert.Equal(t, DefaultLanguage, rec.Data.Language)
	require.Len(t, rec.Data.Tasks, 2)
	assert.Equal(t, 0, *rec.Data.Tasks[0].ID)
	assert.Equal(t, 1, *rec.Data.Tasks[1].ID)

	rec, err = f.build(models.KindRoutine, BuildRequest{PersonID: f.person.ID, Language: "fr-fr"})
	require.NoError(t, err)
	assert.Equal(t, "fr-fr", rec.Data.Language)
	assert.Nil(t, rec.Data.Tasks)

	rec, err = f.build(models.KindToDo, BuildRequest{PersonID: f.person.ID})
	require.NoError(t, err)
	assert.Empty(t, rec.Data.Language)
}

func TestBuildRoutineRejectsBadTaskIDs(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		tasks []any
	}{
		{"collides with position", []any{
			map[string]any{"text": "a"},
			map[string]any{"text": "b", "id": 0},
		}},
		{"out of range", []any{
			map[string]any{"text": "a"},
			map[string]any{"text": "b", "id": 9},
		}},
		{"negative", []any{
			map[string]any{"text": "a", "id": -1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.build(models.KindRoutine, BuildRequest{
				PersonID: f.person.ID,
				Data:     map[string]any{"tasks": tt.tasks},
			})
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}

	rec, err := f.build(models.KindRoutine, BuildRequest{
		PersonID: f.person.ID,
		Data: map[string]any{"tasks": []any{
			map[string]any{"text": "a", "id": 1},
			map[string]any{"text": "b", "id": 0},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *rec.Data.Tasks[0].ID)
	assert.Equal(t, 0, *rec.Data.Tasks[1].ID)
}

func TestBuildRoutinePrependsToDos(t *testing.T) {
	f := newFixture(t)
	f.now = 5
	older := f.todo(BuildRequest{Name: "older", Data: map[string]any{"text": "older text"}})
	f.now = 6
	newer := f.todo(BuildRequest{Name: "newer"})
	f.now = 7

	rec, err := f.build(models.KindRoutine, BuildRequest{
		PersonID: f.person.ID,
		Data: map[string]any{
			"todos": true,
			"tasks": []any{map[string]any{"text": "do it"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.Data.Tasks, 3)

	assert.Equal(t, "newer", rec.Data.Tasks[0].Text)
	assert.Equal(t, newer.ID, rec.Data.Tasks[0].Todo)
	assert.Equal(t, "older text", rec.Data.Tasks[1].Text)
	assert.Equal(t, older.ID, rec.Data.Tasks[1].Todo)
	assert.Equal(t, "do it", rec.Data.Tasks[2].Text)
	for i, task := range rec.Data.Tasks {
		assert.Equal(t, i, *task.ID)
	}
}
