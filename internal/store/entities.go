package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fentz26/nandy/internal/models"
	"github.com/google/uuid"
)

// --- Person Operations ---

// CreatePerson inserts a person, assigning an ID when it has none.
func (q *queries) CreatePerson(ctx context.Context, p *models.Person) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := q.exec(ctx, `INSERT INTO persons (id, name, email) VALUES (?, ?, ?)`, p.ID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by ID.
func (q *queries) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	p := &models.Person{}
	err := q.queryRow(ctx, `SELECT id, name, email FROM persons WHERE id = ?`, id).Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return p, nil
}

// FindPersonByName returns the one person with exactly this name.
func (q *queries) FindPersonByName(ctx context.Context, name string) (*models.Person, error) {
	return q.findPerson(ctx, "name", name)
}

// FindPersonByEmail returns the one person with exactly this email.
func (q *queries) FindPersonByEmail(ctx context.Context, email string) (*models.Person, error) {
	return q.findPerson(ctx, "email", email)
}

func (q *queries) findPerson(ctx context.Context, column, value string) (*models.Person, error) {
	rows, err := q.query(ctx, `SELECT id, name, email FROM persons WHERE `+column+` = ? LIMIT 2`, value)
	if err != nil {
		return nil, fmt.Errorf("query person by %s: %w", column, err)
	}
	defer rows.Close()

	persons, err := scanPersons(rows)
	if err != nil {
		return nil, err
	}
	switch len(persons) {
	case 0:
		return nil, fmt.Errorf("person with %s %q: %w", column, value, ErrNotFound)
	case 1:
		return &persons[0], nil
	default:
		return nil, fmt.Errorf("person with %s %q: %w", column, value, ErrAmbiguous)
	}
}

// ListPersons returns all persons ordered by name.
func (q *queries) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := q.query(ctx, `SELECT id, name, email FROM persons ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()
	return scanPersons(rows)
}

// UpdatePerson overwrites a person's name and email.
func (q *queries) UpdatePerson(ctx context.Context, p *models.Person) error {
	res, err := q.exec(ctx, `UPDATE persons SET name = ?, email = ? WHERE id = ?`, p.Name, p.Email, p.ID)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return affected(res, "person "+p.ID)
}

// DeletePerson removes a person. A person who still owns routines, todos,
// acts or areas is refused with ErrInUse on every driver.
func (q *queries) DeletePerson(ctx context.Context, id string) error {
	for _, table := range recordTables {
		var n int
		if err := q.queryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE person_id = ?`, id).Scan(&n); err != nil {
			return fmt.Errorf("count %s of person: %w", table, err)
		}
		if n > 0 {
			return fmt.Errorf("person %s owns %d %s: %w", id, n, table, ErrInUse)
		}
	}
	res, err := q.exec(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return affected(res, "person "+id)
}

func scanPersons(rows *sql.Rows) ([]models.Person, error) {
	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// --- Template Operations ---

// CreateTemplate inserts a template, assigning an ID when it has none.
func (q *queries) CreateTemplate(ctx context.Context, t *models.Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	data, err := json.Marshal(t.Data)
	if err != nil {
		return fmt.Errorf("encode template data: %w", err)
	}
	_, err = q.exec(ctx, `INSERT INTO templates (id, name, kind, data) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, string(t.Kind), string(data))
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template by ID.
func (q *queries) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	rows, err := q.query(ctx, `SELECT id, name, kind, data FROM templates WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}
	defer rows.Close()

	templates, err := scanTemplates(rows)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return &templates[0], nil
}

// ListTemplates returns templates ordered by name, optionally filtered by kind.
func (q *queries) ListTemplates(ctx context.Context, kind models.Kind) ([]models.Template, error) {
	query := `SELECT id, name, kind, data FROM templates`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY name`

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()
	return scanTemplates(rows)
}

// UpdateTemplate overwrites a template.
func (q *queries) UpdateTemplate(ctx context.Context, t *models.Template) error {
	data, err := json.Marshal(t.Data)
	if err != nil {
		return fmt.Errorf("encode template data: %w", err)
	}
	res, err := q.exec(ctx, `UPDATE templates SET name = ?, kind = ?, data = ? WHERE id = ?`,
		t.Name, string(t.Kind), string(data), t.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return affected(res, "template "+t.ID)
}

// DeleteTemplate removes a template.
func (q *queries) DeleteTemplate(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return affected(res, "template "+id)
}

func scanTemplates(rows *sql.Rows) ([]models.Template, error) {
	var templates []models.Template
	for rows.Next() {
		var t models.Template
		var kind, data string
		if err := rows.Scan(&t.ID, &t.Name, &kind, &data); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Kind = models.Kind(kind)
		if err := json.Unmarshal([]byte(data), &t.Data); err != nil {
			return nil, fmt.Errorf("decode template %s: %w", t.ID, err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// --- PDR Operations ---

// WritePDR writes a Process Decision Record.
func (q *queries) WritePDR(ctx context.Context, kind models.Kind, action, inputsHash, outcome, entityID, details string) (*models.PDREntry, error) {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Kind:       kind,
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		EntityID:   entityID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := q.exec(ctx,
		`INSERT INTO pdr (id, kind, action, inputs_hash, outcome, entity_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pdr.ID, string(pdr.Kind), pdr.Action, pdr.InputsHash, pdr.Outcome, pdr.EntityID, pdr.Details, pdr.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns the decision records for an entity, newest first.
func (q *queries) ListPDR(ctx context.Context, entityID string) ([]models.PDREntry, error) {
	rows, err := q.query(ctx,
		`SELECT id, kind, action, inputs_hash, outcome, entity_id, details, timestamp FROM pdr WHERE entity_id = ? ORDER BY timestamp DESC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	var entries []models.PDREntry
	for rows.Next() {
		var e models.PDREntry
		var kind string
		var entity, details sql.NullString
		if err := rows.Scan(&e.ID, &kind, &e.Action, &e.InputsHash, &e.Outcome, &entity, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		e.Kind = models.Kind(kind)
		e.EntityID = entity.String
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
