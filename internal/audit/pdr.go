// Package audit provides PDR (Process Decision Record) writing for Nandy.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"

	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/store"
)

// Outcomes recorded for an action.
const (
	OutcomeUpdated = "updated"
	OutcomeNoop    = "noop"
	OutcomeError   = "error"
)

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	store *store.Store
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(s *store.Store) *PDRWriter {
	return &PDRWriter{store: s}
}

// Record writes a PDR entry for a state-mutating action. It must run after the
// action's transaction has finished. A failed write is logged and otherwise
// ignored.
func (w *PDRWriter) Record(ctx context.Context, kind models.Kind, action string, inputs any, outcome, entityID, details string) *models.PDREntry {
	if w == nil {
		return nil
	}
	entry, err := w.store.WritePDR(ctx, kind, action, hashInputs(inputs), outcome, entityID, details)
	if err != nil {
		log.Printf("audit: record %s.%s for %s: %v", kind, action, entityID, err)
		return nil
	}
	return entry
}

// History returns the decision records for an entity, newest first.
func (w *PDRWriter) History(ctx context.Context, entityID string) ([]models.PDREntry, error) {
	return w.store.ListPDR(ctx, entityID)
}

// Outcome maps an action result to its recorded outcome.
func Outcome(updated bool, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case updated:
		return OutcomeUpdated
	}
	return OutcomeNoop
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
