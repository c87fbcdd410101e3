package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/nandy/internal/engine"
	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/store"
	"gopkg.in/yaml.v3"
)

// Plural path segments per record kind.
var plurals = map[models.Kind]string{
	models.KindRoutine: "routines",
	models.KindToDo:    "todos",
	models.KindAct:     "acts",
	models.KindArea:    "areas",
}

// Server provides the HTTP API for Nandy.
type Server struct {
	service *Service
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string) *Server {
	return &Server{
		service: service,
		addr:    addr,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/persons", s.handlePersons)
	mux.HandleFunc("/persons/", s.handlePersonByID)
	mux.HandleFunc("/templates", s.handleTemplates)
	mux.HandleFunc("/templates/", s.handleTemplateByID)

	for kind, plural := range plurals {
		mux.HandleFunc("/"+plural, s.handleRecords(kind))
		mux.HandleFunc("/"+plural+"/", s.handleRecordByID(kind))
	}

	mux.HandleFunc("/health", s.handleHealth)
	if s.service.metrics != nil {
		mux.Handle("/metrics", s.service.metrics.Handler())
	}
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting Nandy daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Person Handlers ---

// handlePersons handles POST /persons and GET /persons
func (s *Server) handlePersons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var p models.Person
		if err := decodeBody(r, "person", &p); err != nil {
			writeError(w, err)
			return
		}
		if err := s.service.CreatePerson(r.Context(), &p); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"person": p})
	case http.MethodGet:
		persons, err := s.service.ListPersons(r.Context(), r.URL.Query().Get("name"))
		if err != nil {
			writeError(w, err)
			return
		}
		if persons == nil {
			persons = []models.Person{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"persons": persons})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePersonByID handles /persons/{id}
func (s *Server) handlePersonByID(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/persons/")
	if len(parts) != 1 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		p, err := s.service.GetPerson(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"person": p})
	case http.MethodPatch:
		var patch PersonPatch
		if err := decodeBody(r, "person", &patch); err != nil {
			writeError(w, err)
			return
		}
		if err := s.service.UpdatePerson(r.Context(), id, patch); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"updated": 1})
	case http.MethodDelete:
		if err := s.service.DeletePerson(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"deleted": 1})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- Template Handlers ---

type templateIn struct {
	Name string         `json:"name"`
	Kind models.Kind    `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
	YAML string         `json:"yaml,omitempty"`
}

type templatePatchIn struct {
	TemplatePatch
	YAML string `json:"yaml,omitempty"`
}

type templateOut struct {
	models.Template
	YAML string `json:"yaml"`
}

func outTemplate(t models.Template) templateOut {
	return templateOut{Template: t, YAML: renderYAML(t.Data)}
}

// handleTemplates handles POST /templates and GET /templates
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var in templateIn
		if err := decodeBody(r, "template", &in); err != nil {
			writeError(w, err)
			return
		}
		data, err := inputData(in.Data, in.YAML)
		if err != nil {
			writeError(w, err)
			return
		}
		t := &models.Template{Name: in.Name, Kind: in.Kind, Data: data}
		if err := s.service.CreateTemplate(r.Context(), t); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"template": outTemplate(*t)})
	case http.MethodGet:
		templates, err := s.service.ListTemplates(r.Context(), models.Kind(r.URL.Query().Get("kind")))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]templateOut, len(templates))
		for i, t := range templates {
			out[i] = outTemplate(t)
		}
		writeJSON(w, http.StatusOK, map[string]any{"templates": out})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTemplateByID handles /templates/{id}
func (s *Server) handleTemplateByID(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/templates/")
	if len(parts) != 1 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		t, err := s.service.GetTemplate(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"template": outTemplate(*t)})
	case http.MethodPatch:
		var in templatePatchIn
		if err := decodeBody(r, "template", &in); err != nil {
			writeError(w, err)
			return
		}
		data, err := inputData(in.Data, in.YAML)
		if err != nil {
			writeError(w, err)
			return
		}
		in.TemplatePatch.Data = data
		if err := s.service.UpdateTemplate(r.Context(), id, in.TemplatePatch); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"updated": 1})
	case http.MethodDelete:
		if err := s.service.DeleteTemplate(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"deleted": 1})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- Record Handlers ---

type recordIn struct {
	engine.BuildRequest
	YAML string `json:"yaml,omitempty"`
}

type recordPatchIn struct {
	RecordPatch
	YAML string `json:"yaml,omitempty"`
}

type recordOut struct {
	models.Record
	YAML string `json:"yaml"`
}

func outRecord(rec models.Record) recordOut {
	data, err := rec.Data.Map()
	if err != nil {
		log.Printf("render %s data: %v", rec.ID, err)
	}
	return recordOut{Record: rec, YAML: renderYAML(data)}
}

// handleRecords handles POST and GET on /routines, /todos, /acts and /areas
func (s *Server) handleRecords(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var in recordIn
			if err := decodeBody(r, string(kind), &in); err != nil {
				writeError(w, err)
				return
			}
			data, err := inputData(in.Data, in.YAML)
			if err != nil {
				writeError(w, err)
				return
			}
			in.BuildRequest.Data = data
			rec, err := s.service.Create(r.Context(), kind, in.BuildRequest)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{string(kind): outRecord(*rec)})
		case http.MethodGet:
			q := r.URL.Query()
			recs, err := s.service.List(r.Context(), kind, store.Filter{
				PersonID: q.Get("person_id"),
				Status:   q.Get("status"),
				Name:     q.Get("name"),
			})
			if err != nil {
				writeError(w, err)
				return
			}
			out := make([]recordOut, len(recs))
			for i, rec := range recs {
				out[i] = outRecord(rec)
			}
			writeJSON(w, http.StatusOK, map[string]any{plurals[kind]: out})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleRecordByID handles /{kind}/{id}, /{kind}/{id}/history,
// /{kind}/{id}/{action}, /routines/{id}/tasks/{task}/{action} and
// /todos/remind
func (s *Server) handleRecordByID(kind models.Kind) http.HandlerFunc {
	prefix := "/" + plurals[kind] + "/"
	return func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, prefix)
		if len(parts) == 0 {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}

		switch {
		case kind == models.KindToDo && len(parts) == 1 && parts[0] == "remind" && r.Method == http.MethodPatch:
			s.remindToDos(w, r)
		case len(parts) == 1:
			s.handleRecord(w, r, kind, parts[0])
		case len(parts) == 2 && parts[1] == "history" && r.Method == http.MethodGet:
			s.getHistory(w, r, parts[0])
		case len(parts) == 2 && r.Method == http.MethodPatch:
			s.recordAction(w, r, kind, parts[0], engine.Action(parts[1]))
		case kind == models.KindRoutine && len(parts) == 4 && parts[1] == "tasks" && r.Method == http.MethodPatch:
			s.taskAction(w, r, parts[0], parts[2], engine.Action(parts[3]))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, kind models.Kind, id string) {
	switch r.Method {
	case http.MethodGet:
		rec, err := s.service.Get(r.Context(), kind, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{string(kind): outRecord(*rec)})
	case http.MethodPatch:
		var in recordPatchIn
		if err := decodeBody(r, string(kind), &in); err != nil {
			writeError(w, err)
			return
		}
		data, err := inputData(in.Data, in.YAML)
		if err != nil {
			writeError(w, err)
			return
		}
		in.RecordPatch.Data = data
		if err := s.service.Update(r.Context(), kind, id, in.RecordPatch); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"updated": 1})
	case http.MethodDelete:
		if err := s.service.Delete(r.Context(), kind, id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"deleted": 1})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) recordAction(w http.ResponseWriter, r *http.Request, kind models.Kind, id string, action engine.Action) {
	updated, err := s.service.Action(r.Context(), kind, id, action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"updated": updated})
}

func (s *Server) taskAction(w http.ResponseWriter, r *http.Request, routineID, task string, action engine.Action) {
	taskID, err := strconv.Atoi(task)
	if err != nil {
		http.Error(w, "task must be an index", http.StatusBadRequest)
		return
	}
	updated, err := s.service.TaskAction(r.Context(), routineID, taskID, action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"updated": updated})
}

func (s *Server) remindToDos(w http.ResponseWriter, r *http.Request) {
	var req engine.RemindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	updated, err := s.service.RemindToDos(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"updated": updated})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request, id string) {
	entries, err := s.service.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.PDREntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// --- Helpers ---

func splitPath(path, prefix string) []string {
	path = strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// decodeBody reads a {"<key>": {...}} envelope into v.
func decodeBody(r *http.Request, key string, v any) error {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: invalid json", ErrInvalidInput)
	}
	raw, ok := body[key]
	if !ok {
		return fmt.Errorf("%w: body needs a %q object", ErrInvalidInput, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// inputData returns data, or the mapping parsed from doc when doc is set.
func inputData(data map[string]any, doc string) (map[string]any, error) {
	if doc == "" {
		return data, nil
	}
	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("%w: yaml: %v", ErrInvalidInput, err)
	}
	if parsed == nil {
		parsed = map[string]any{}
	}
	return parsed, nil
}

func renderYAML(data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return ""
	}
	return string(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}
