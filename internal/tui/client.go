package tui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fentz26/nandy/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// ErrNoPerson is returned by calls that need a person when the client has none.
var ErrNoPerson = errors.New("no person selected, start the tui with --person")

// Client wraps HTTP calls to the Nandy API for one person.
type Client struct {
	baseURL    string
	person     string
	personID   string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout. person may be empty, in
// which case every person's records are listed.
func NewClient(baseURL, person string) *Client {
	return &Client{
		baseURL: baseURL,
		person:  person,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// Person returns the person name the client acts for.
func (c *Client) Person() string {
	return c.person
}

func (c *Client) do(method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Health checks the daemon answers.
func (c *Client) Health() error {
	return c.do(http.MethodGet, "/health", nil, nil)
}

// resolvePerson looks the person's id up once.
func (c *Client) resolvePerson() (string, error) {
	if c.person == "" || c.personID != "" {
		return c.personID, nil
	}
	var out struct {
		Persons []models.Person `json:"persons"`
	}
	if err := c.do(http.MethodGet, "/persons?name="+url.QueryEscape(c.person), nil, &out); err != nil {
		return "", err
	}
	if len(out.Persons) == 0 {
		return "", fmt.Errorf("person %q not found", c.person)
	}
	c.personID = out.Persons[0].ID
	return c.personID, nil
}

func (c *Client) listQuery(status string) (string, error) {
	q := url.Values{}
	id, err := c.resolvePerson()
	if err != nil {
		return "", err
	}
	if id != "" {
		q.Set("person_id", id)
	}
	if status != "" {
		q.Set("status", status)
	}
	if len(q) == 0 {
		return "", nil
	}
	return "?" + q.Encode(), nil
}

// ListRoutines fetches routines, newest first.
func (c *Client) ListRoutines(status string) ([]RoutineItem, error) {
	query, err := c.listQuery(status)
	if err != nil {
		return nil, err
	}
	var out struct {
		Routines []models.Routine `json:"routines"`
	}
	if err := c.do(http.MethodGet, "/routines"+query, nil, &out); err != nil {
		return nil, err
	}
	items := make([]RoutineItem, len(out.Routines))
	for i, r := range out.Routines {
		items[i] = routineItem(r)
	}
	return items, nil
}

// ListToDos fetches todos, newest first.
func (c *Client) ListToDos(status string) ([]ToDoItem, error) {
	query, err := c.listQuery(status)
	if err != nil {
		return nil, err
	}
	var out struct {
		ToDos []models.ToDo `json:"todos"`
	}
	if err := c.do(http.MethodGet, "/todos"+query, nil, &out); err != nil {
		return nil, err
	}
	items := make([]ToDoItem, len(out.ToDos))
	for i, t := range out.ToDos {
		items[i] = todoItem(t)
	}
	return items, nil
}

type updatedResponse struct {
	Updated bool `json:"updated"`
}

// RoutineAction applies action to a routine.
func (c *Client) RoutineAction(id, action string) (bool, error) {
	var out updatedResponse
	err := c.do(http.MethodPatch, "/routines/"+id+"/"+action, nil, &out)
	return out.Updated, err
}

// TaskAction applies action to the task at index task of a routine.
func (c *Client) TaskAction(id string, task int, action string) (bool, error) {
	var out updatedResponse
	err := c.do(http.MethodPatch, "/routines/"+id+"/tasks/"+strconv.Itoa(task)+"/"+action, nil, &out)
	return out.Updated, err
}

// ToDoAction applies action to a todo.
func (c *Client) ToDoAction(id, action string) (bool, error) {
	var out updatedResponse
	err := c.do(http.MethodPatch, "/todos/"+id+"/"+action, nil, &out)
	return out.Updated, err
}

// CreateToDo creates a todo named name for the client's person.
func (c *Client) CreateToDo(name string) (*ToDoItem, error) {
	if c.person == "" {
		return nil, ErrNoPerson
	}
	body := map[string]any{"todo": map[string]any{
		"name": name,
		"data": map[string]any{"person": c.person, "text": name},
	}}
	var out struct {
		ToDo models.ToDo `json:"todo"`
	}
	if err := c.do(http.MethodPost, "/todos", body, &out); err != nil {
		return nil, err
	}
	item := todoItem(out.ToDo)
	return &item, nil
}

// StartRoutine creates and starts a routine from a template.
func (c *Client) StartRoutine(templateID string) (*RoutineItem, error) {
	if c.person == "" {
		return nil, ErrNoPerson
	}
	body := map[string]any{"routine": map[string]any{
		"template_id": templateID,
		"data":        map[string]any{"person": c.person},
	}}
	var out struct {
		Routine models.Routine `json:"routine"`
	}
	if err := c.do(http.MethodPost, "/routines", body, &out); err != nil {
		return nil, err
	}
	item := routineItem(out.Routine)
	return &item, nil
}

// Remind sends one reminder for all of the person's open todos.
func (c *Client) Remind() (bool, error) {
	if c.person == "" {
		return false, ErrNoPerson
	}
	var out updatedResponse
	err := c.do(http.MethodPatch, "/todos/remind", map[string]string{"person": c.person}, &out)
	return out.Updated, err
}

// RoutineTemplates returns routine template names keyed by id.
func (c *Client) RoutineTemplates() (map[string]string, error) {
	var out struct {
		Templates []models.Template `json:"templates"`
	}
	if err := c.do(http.MethodGet, "/templates?kind="+string(models.KindRoutine), nil, &out); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(out.Templates))
	for _, t := range out.Templates {
		names[t.ID] = t.Name
	}
	return names, nil
}
