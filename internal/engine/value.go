package engine

import (
	"context"
	"fmt"

	"github.com/fentz26/nandy/internal/models"
)

// CreateArea builds, announces and stores a new area. Areas start positive.
func (op *Op) CreateArea(ctx context.Context, req BuildRequest) (*models.Area, error) {
	rec, err := op.Build(ctx, models.KindArea, req)
	if err != nil {
		return nil, err
	}
	a := &models.Area{Record: *rec}
	if err := op.NotifyRecord(ctx, models.KindArea, Create, &a.Record); err != nil {
		return nil, err
	}
	if err := op.store.CreateArea(ctx, a); err != nil {
		return nil, fmt.Errorf("create area: %w", err)
	}
	return a, nil
}

// AreaAction toggles a between right (positive) and wrong (negative). Going
// wrong creates the area's todo, if it names one, pointing back at a.
func (op *Op) AreaAction(ctx context.Context, a *models.Area, action Action) (bool, error) {
	names := op.eng.statuses.Area
	switch action {
	case Right:
		if a.Status != names.Terminal {
			return false, nil
		}
		a.Status = names.Active
	case Wrong:
		if a.Status != names.Active {
			return false, nil
		}
		a.Status = names.Terminal
	default:
		return false, ErrUnknownAction
	}

	if err := op.NotifyRecord(ctx, models.KindArea, action, &a.Record); err != nil {
		return false, err
	}
	if action == Wrong && a.Data.Todo != nil {
		_, err := op.CreateToDo(ctx, BuildRequest{
			PersonID: a.PersonID,
			Template: a.Data.Todo,
			Data:     map[string]any{"area": a.ID},
		})
		if err != nil {
			return false, fmt.Errorf("todo of area %s: %w", a.ID, err)
		}
	}
	if err := op.store.UpdateArea(ctx, a); err != nil {
		return false, fmt.Errorf("update area %s: %w", a.ID, err)
	}
	return true, nil
}

// CreateAct builds, announces and stores a new act. A negative act that names
// a todo creates it, linked back through act_id.
func (op *Op) CreateAct(ctx context.Context, req BuildRequest) (*models.Act, error) {
	rec, err := op.Build(ctx, models.KindAct, req)
	if err != nil {
		return nil, err
	}
	a := &models.Act{Record: *rec}
	if err := op.NotifyRecord(ctx, models.KindAct, Create, &a.Record); err != nil {
		return nil, err
	}
	if err := op.store.CreateAct(ctx, a); err != nil {
		return nil, fmt.Errorf("create act: %w", err)
	}
	if a.Status == op.eng.statuses.Act.Terminal && a.Data.Todo != nil {
		_, err := op.CreateToDo(ctx, BuildRequest{
			PersonID: a.PersonID,
			Template: a.Data.Todo,
			Data:     map[string]any{"act_id": a.ID},
		})
		if err != nil {
			return nil, fmt.Errorf("todo of act %s: %w", a.ID, err)
		}
	}
	return a, nil
}

// ActAction flips a between positive (right) and negative (wrong).
func (op *Op) ActAction(ctx context.Context, a *models.Act, action Action) (bool, error) {
	names := op.eng.statuses.Act
	switch action {
	case Right:
		if a.Status != names.Terminal {
			return false, nil
		}
		a.Status = names.Active
	case Wrong:
		if a.Status != names.Active {
			return false, nil
		}
		a.Status = names.Terminal
	default:
		return false, ErrUnknownAction
	}

	if err := op.NotifyRecord(ctx, models.KindAct, action, &a.Record); err != nil {
		return false, err
	}
	if err := op.store.UpdateAct(ctx, a); err != nil {
		return false, fmt.Errorf("update act %s: %w", a.ID, err)
	}
	return true, nil
}
