package main

import (
	"context"
	"testing"

	"github.com/fentz26/nandy/internal/config"
	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateOf(t *testing.T) {
	r := &models.Record{}
	assert.Equal(t, "", stateOf(r))

	r.Data.Paused = models.Bool(true)
	r.Data.Expired = models.Bool(true)
	r.Data.Tasks = []models.Task{
		{Flags: models.Flags{Start: models.Float(1), End: models.Float(2)}},
		{Flags: models.Flags{Start: models.Float(2)}},
	}
	assert.Equal(t, "paused,expired,1/2 tasks", stateOf(r))
}

func TestTaskStateOf(t *testing.T) {
	assert.Equal(t, "pending", taskStateOf(&models.Flags{}))
	assert.Equal(t, "active", taskStateOf(&models.Flags{Start: models.Float(1)}))
	assert.Equal(t, "paused", taskStateOf(&models.Flags{Start: models.Float(1), Paused: models.Bool(true)}))
	assert.Equal(t, "done", taskStateOf(&models.Flags{Start: models.Float(1), End: models.Float(2)}))
	assert.Equal(t, "skipped", taskStateOf(&models.Flags{Start: models.Float(1), End: models.Float(2), Skipped: models.Bool(true)}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "12345678", truncateID("12345678-aaaa-bbbb"))
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "", formatEpoch(0))
	assert.NotEmpty(t, formatEpoch(1700000000.5))
}

func TestNewNotifier(t *testing.T) {
	ctx := context.Background()

	n, closeFn, err := newNotifier(ctx, config.NotifyConfig{Driver: config.NotifyNone})
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, notify.Nop{}, n)

	n, _, err = newNotifier(ctx, config.NotifyConfig{})
	require.NoError(t, err)
	assert.IsType(t, notify.Log{}, n)

	n, _, err = newNotifier(ctx, config.NotifyConfig{
		Driver: config.NotifyNone,
		Hook:   config.HookConfig{Command: "true"},
	})
	require.NoError(t, err)
	require.IsType(t, notify.Multi{}, n)
	assert.Len(t, n.(notify.Multi), 2)

	_, _, err = newNotifier(ctx, config.NotifyConfig{Driver: "kafka"})
	assert.ErrorContains(t, err, "unknown notify driver")
}

func TestRecordCommands(t *testing.T) {
	for _, tc := range []struct {
		cmd  string
		want []string
	}{
		{"routine", []string{"add", "list", "show", "set", "rm", "history", "next", "task", "complete"}},
		{"todo", []string{"add", "remind", "remind-all", "expire"}},
		{"act", []string{"right", "wrong"}},
		{"area", []string{"right", "wrong"}},
	} {
		cmd, _, err := rootCmd.Find([]string{tc.cmd})
		require.NoError(t, err)
		for _, sub := range tc.want {
			found, _, err := cmd.Find([]string{sub})
			require.NoError(t, err, "%s %s", tc.cmd, sub)
			assert.Equal(t, sub, found.Name())
		}
	}
}
