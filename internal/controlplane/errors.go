package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/nandy/internal/engine"
	"github.com/fentz26/nandy/internal/store"
)

// Sentinel errors for control plane operations.
var (
	ErrInvalidKind  = errors.New("invalid kind")
	ErrInvalidInput = errors.New("invalid input")
)

// statusFor maps an error to the HTTP status the API answers with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAmbiguous), errors.Is(err, store.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUnknownAction),
		errors.Is(err, engine.ErrTaskNotFound),
		errors.Is(err, engine.ErrNoPerson),
		errors.Is(err, engine.ErrInvalidTemplate),
		errors.Is(err, ErrInvalidKind),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
