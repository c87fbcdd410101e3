package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fentz26/nandy/internal/models"
	"github.com/google/uuid"
)

const (
	tableRoutines = "routines"
	tableToDos    = "todos"
	tableActs     = "acts"
	tableAreas    = "areas"
)

var recordTables = []string{tableRoutines, tableToDos, tableActs, tableAreas}

// Filter narrows a record listing. Empty fields match everything.
type Filter struct {
	PersonID string
	Status   string
	Name     string
}

const recordColumns = `id, person_id, name, status, created, updated, data`

func (q *queries) createRecord(ctx context.Context, table string, r *models.Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", table, err)
	}
	_, err = q.exec(ctx,
		`INSERT INTO `+table+` (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PersonID, r.Name, r.Status, r.Created, r.Updated, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (q *queries) getRecord(ctx context.Context, table, id string) (*models.Record, error) {
	rows, err := q.query(ctx, `SELECT `+recordColumns+` FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return &records[0], nil
}

// listRecords orders routines, todos and acts newest first and areas by name.
func (q *queries) listRecords(ctx context.Context, table string, f Filter) ([]models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ` + table + ` WHERE 1 = 1`
	var args []any
	if f.PersonID != "" {
		query += ` AND person_id = ?`
		args = append(args, f.PersonID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Name != "" {
		query += ` AND name = ?`
		args = append(args, f.Name)
	}
	if table == tableAreas {
		query += ` ORDER BY name`
	} else {
		query += ` ORDER BY created DESC`
	}

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (q *queries) updateRecord(ctx context.Context, table string, r *models.Record) error {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", table, err)
	}
	res, err := q.exec(ctx,
		`UPDATE `+table+` SET person_id = ?, name = ?, status = ?, created = ?, updated = ?, data = ? WHERE id = ?`,
		r.PersonID, r.Name, r.Status, r.Created, r.Updated, string(data), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return affected(res, table+" "+r.ID)
}

func (q *queries) deleteRecord(ctx context.Context, table, id string) error {
	res, err := q.exec(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return affected(res, table+" "+id)
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	var records []models.Record
	for rows.Next() {
		var r models.Record
		var data string
		if err := rows.Scan(&r.ID, &r.PersonID, &r.Name, &r.Status, &r.Created, &r.Updated, &data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// --- Routine Operations ---

// CreateRoutine inserts a routine.
func (q *queries) CreateRoutine(ctx context.Context, r *models.Routine) error {
	return q.createRecord(ctx, tableRoutines, &r.Record)
}

// GetRoutine retrieves a routine by ID.
func (q *queries) GetRoutine(ctx context.Context, id string) (*models.Routine, error) {
	rec, err := q.getRecord(ctx, tableRoutines, id)
	if err != nil {
		return nil, err
	}
	return &models.Routine{Record: *rec}, nil
}

// ListRoutines returns routines, newest first.
func (q *queries) ListRoutines(ctx context.Context, f Filter) ([]models.Routine, error) {
	recs, err := q.listRecords(ctx, tableRoutines, f)
	if err != nil {
		return nil, err
	}
	out := make([]models.Routine, len(recs))
	for i, rec := range recs {
		out[i] = models.Routine{Record: rec}
	}
	return out, nil
}

// UpdateRoutine persists the whole routine, task list included.
func (q *queries) UpdateRoutine(ctx context.Context, r *models.Routine) error {
	return q.updateRecord(ctx, tableRoutines, &r.Record)
}

// DeleteRoutine removes a routine.
func (q *queries) DeleteRoutine(ctx context.Context, id string) error {
	return q.deleteRecord(ctx, tableRoutines, id)
}

// --- ToDo Operations ---

// CreateToDo inserts a todo.
func (q *queries) CreateToDo(ctx context.Context, t *models.ToDo) error {
	return q.createRecord(ctx, tableToDos, &t.Record)
}

// GetToDo retrieves a todo by ID.
func (q *queries) GetToDo(ctx context.Context, id string) (*models.ToDo, error) {
	rec, err := q.getRecord(ctx, tableToDos, id)
	if err != nil {
		return nil, err
	}
	return &models.ToDo{Record: *rec}, nil
}

// ListToDos returns todos, newest first.
func (q *queries) ListToDos(ctx context.Context, f Filter) ([]models.ToDo, error) {
	recs, err := q.listRecords(ctx, tableToDos, f)
	if err != nil {
		return nil, err
	}
	out := make([]models.ToDo, len(recs))
	for i, rec := range recs {
		out[i] = models.ToDo{Record: rec}
	}
	return out, nil
}

// UpdateToDo persists a todo.
func (q *queries) UpdateToDo(ctx context.Context, t *models.ToDo) error {
	return q.updateRecord(ctx, tableToDos, &t.Record)
}

// DeleteToDo removes a todo.
func (q *queries) DeleteToDo(ctx context.Context, id string) error {
	return q.deleteRecord(ctx, tableToDos, id)
}

// --- Act Operations ---

// CreateAct inserts an act.
func (q *queries) CreateAct(ctx context.Context, a *models.Act) error {
	return q.createRecord(ctx, tableActs, &a.Record)
}

// GetAct retrieves an act by ID.
func (q *queries) GetAct(ctx context.Context, id string) (*models.Act, error) {
	rec, err := q.getRecord(ctx, tableActs, id)
	if err != nil {
		return nil, err
	}
	return &models.Act{Record: *rec}, nil
}

// ListActs returns acts, newest first.
func (q *queries) ListActs(ctx context.Context, f Filter) ([]models.Act, error) {
	recs, err := q.listRecords(ctx, tableActs, f)
	if err != nil {
		return nil, err
	}
	out := make([]models.Act, len(recs))
	for i, rec := range recs {
		out[i] = models.Act{Record: rec}
	}
	return out, nil
}

// UpdateAct persists an act.
func (q *queries) UpdateAct(ctx context.Context, a *models.Act) error {
	return q.updateRecord(ctx, tableActs, &a.Record)
}

// DeleteAct removes an act.
func (q *queries) DeleteAct(ctx context.Context, id string) error {
	return q.deleteRecord(ctx, tableActs, id)
}

// --- Area Operations ---

// CreateArea inserts an area.
func (q *queries) CreateArea(ctx context.Context, a *models.Area) error {
	return q.createRecord(ctx, tableAreas, &a.Record)
}

// GetArea retrieves an area by ID.
func (q *queries) GetArea(ctx context.Context, id string) (*models.Area, error) {
	rec, err := q.getRecord(ctx, tableAreas, id)
	if err != nil {
		return nil, err
	}
	return &models.Area{Record: *rec}, nil
}

// ListAreas returns areas ordered by name.
func (q *queries) ListAreas(ctx context.Context, f Filter) ([]models.Area, error) {
	recs, err := q.listRecords(ctx, tableAreas, f)
	if err != nil {
		return nil, err
	}
	out := make([]models.Area, len(recs))
	for i, rec := range recs {
		out[i] = models.Area{Record: rec}
	}
	return out, nil
}

// UpdateArea persists an area.
func (q *queries) UpdateArea(ctx context.Context, a *models.Area) error {
	return q.updateRecord(ctx, tableAreas, &a.Record)
}

// DeleteArea removes an area.
func (q *queries) DeleteArea(ctx context.Context, id string) error {
	return q.deleteRecord(ctx, tableAreas, id)
}
