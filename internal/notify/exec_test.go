//go:build !windows

package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/nandy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecPipesMessage(t *testing.T) {
	e := NewExec("cat", nil, nil, 0)
	msg := Message{Kind: models.KindToDo, Action: "remind", ToDo: &models.ToDo{Record: models.Record{ID: "t1", Name: "dishes"}}}

	res, err := e.Run(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	var got Message
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &got))
	assert.Equal(t, "remind", got.Action)
	assert.Equal(t, "dishes", got.ToDo.Name)
}

func TestExecEnvironment(t *testing.T) {
	e := NewExec("sh", []string{"-c", `echo "$NANDY_KIND $NANDY_ACTION"`}, nil, 0)
	res, err := e.Run(context.Background(), Message{Kind: models.KindArea, Action: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, "area wrong\n", res.Stdout)
}

func TestExecExitCode(t *testing.T) {
	e := NewExec("sh", []string{"-c", "echo nope >&2; exit 3"}, nil, 0)
	res, err := e.Run(context.Background(), Message{Kind: models.KindAct})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "nope\n", res.Stderr)

	// Publish only logs.
	e.Publish(context.Background(), Message{Kind: models.KindAct})
	e.Wait()
}

func TestExecMissingCommand(t *testing.T) {
	e := NewExec("/nonexistent/nandy-hook", nil, nil, 0)
	_, err := e.Run(context.Background(), Message{Kind: models.KindAct})
	assert.ErrorContains(t, err, "exec error")
}

func TestExecKindFilter(t *testing.T) {
	e := NewExec("true", nil, []string{"routine"}, 0)
	assert.True(t, e.Wants(Message{Kind: models.KindRoutine}))
	assert.False(t, e.Wants(Message{Kind: models.KindToDo}))
	assert.True(t, NewExec("true", nil, nil, 0).Wants(Message{Kind: models.KindToDo}))
}

func TestExecPublishDoesNotWait(t *testing.T) {
	e := NewExec("sleep", []string{"2"}, nil, 0)

	start := time.Now()
	e.Publish(context.Background(), Message{Kind: models.KindToDo, Action: "complete"})
	assert.Less(t, time.Since(start), time.Second)

	e.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
}

func TestExecPublishSnapshotsMessage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "msg.json")
	e := NewExec("sh", []string{"-c", "sleep 0.2; cat > " + out}, nil, 0)

	todo := &models.ToDo{Record: models.Record{ID: "t1", Name: "dishes"}}
	e.Publish(context.Background(), Message{Kind: models.KindToDo, Action: "create", ToDo: todo})
	todo.Name = "changed"
	e.Wait()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "dishes", got.ToDo.Name)
}

func TestExecPublishDropsWhenBusy(t *testing.T) {
	e := NewExec("sleep", []string{"1"}, nil, 0)
	for i := 0; i < MaxHookRuns+2; i++ {
		e.Publish(context.Background(), Message{Kind: models.KindAct, Action: "wrong"})
	}
	assert.Len(t, e.slots, MaxHookRuns)
	e.Wait()
	assert.Len(t, e.slots, 0)
}
