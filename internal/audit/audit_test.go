package audit

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf)

	l.Log(Event{
		Timestamp: time.Now(),
		ActorID:   "id-1",
		Action:    ActionLogin,
		Resource:  "identity:id-1",
	})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var got Event
	require.NoError(t, json.Unmarshal(lines[0], &got))
	assert.Equal(t, ActionLogin, got.Action)
	assert.Equal(t, "id-1", got.ActorID)
}

func TestJSONLoggerMasksSensitiveMetadata(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf)

	l.Log(Event{
		Timestamp: time.Now(),
		Action:    ActionLoginFailed,
		Metadata: map[string]interface{}{
			"reason":        "bad_password",
			"password":      "hunter2",
			"AccessToken":   "abc",
			"PasswordHash":  "xyz",
			"client_secret": "shh",
		},
	})

	var got Event
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))

	assert.Equal(t, "bad_password", got.Metadata["reason"])
	assert.Equal(t, "***REDACTED***", got.Metadata["password"])
	assert.Equal(t, "***REDACTED***", got.Metadata["AccessToken"])
	assert.Equal(t, "***REDACTED***", got.Metadata["PasswordHash"])
	assert.Equal(t, "***REDACTED***", got.Metadata["client_secret"])
}
