package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Auth event actions.
const (
	ActionSignup             = "signup"
	ActionLogin              = "login"
	ActionLoginFailed        = "login_failed"
	ActionOAuthLogin         = "oauth_login"
	ActionRegistrationToggle = "registration_toggle"
)

// Event is one line in the append-only auth audit trail. Failure reasons
// live here and in the server log only, never in HTTP responses.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	ActorID   string                 `json:"actor_id,omitempty"`
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type Logger interface {
	Log(event Event)
}

// JSONLogger writes one JSON object per line.
type JSONLogger struct {
	mu  sync.Mutex
	out io.Writer
}

func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{out: w}
}

func (l *JSONLogger) Log(event Event) {
	if event.Metadata != nil {
		maskSensitive(event.Metadata)
	}

	bytes, err := json.Marshal(event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit log error: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(bytes)
	l.out.Write([]byte("\n"))
}

// NopLogger discards events; used in tests.
type NopLogger struct{}

func (NopLogger) Log(Event) {}

func maskSensitive(m map[string]interface{}) {
	sensitiveKeys := []string{"password", "token", "secret", "hash"}
	for k := range m {
		lowerK := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lowerK, s) {
				m[k] = "***REDACTED***"
				break
			}
		}
	}
}
