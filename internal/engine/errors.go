package engine

import "errors"

// Sentinel errors for engine operations. Missing entities surface as
// store.ErrNotFound and duplicate-named persons as store.ErrAmbiguous.
var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrTaskNotFound    = errors.New("task not found")
	ErrNoPerson        = errors.New("no person given")
	ErrInvalidTemplate = errors.New("invalid template")
)
