package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEventHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLogEventHandler(zerolog.New(&buf))
	ctx := context.Background()

	handler.OnRetryAttempt(ctx, Event{Name: "get-user", Attempt: 1, Delay: 100 * time.Millisecond, Outcome: Outcome{StatusCode: 503}})
	handler.OnMaxAttemptsReached(ctx, Event{Name: "get-user", Attempt: 3, Outcome: Outcome{Err: errors.New("connection reset")}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "warn", first["level"])
	assert.Equal(t, "get-user", first["endpoint"])
	assert.Equal(t, float64(503), first["status"])
	assert.Equal(t, "retrying request", first["message"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "error", second["level"])
	assert.Equal(t, "connection reset", second["error"])
	assert.Equal(t, float64(3), second["attempt"])
}

func TestMultiEventHandler(t *testing.T) {
	a, b := &recordingHandler{}, &recordingHandler{}
	multi := MultiEventHandler{a, b}
	ctx := context.Background()

	multi.OnRetryAttempt(ctx, Event{})
	multi.OnRetrySuccess(ctx, Event{})
	multi.OnRetryFailure(ctx, Event{})
	multi.OnMaxAttemptsReached(ctx, Event{})

	expected := []string{"attempt", "success", "failure", "exhausted"}
	assert.Equal(t, expected, a.events)
	assert.Equal(t, expected, b.events)
}
