package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	e := NewEngine(RatePolicy{ID: "default", Max: 100, Window: 15 * time.Minute})
	e.Load([]RatePolicy{
		{ID: "auth", Path: "/api/auth/", Max: 20, Window: 15 * time.Minute},
		{ID: "probes", Path: "/health", Max: 1000, Window: time.Minute},
	})

	assert.Equal(t, "auth", e.Resolve("/api/auth/login").ID)
	assert.Equal(t, "probes", e.Resolve("/health").ID)
	assert.Equal(t, "default", e.Resolve("/api/admin/registration").ID)
}

func TestFirstMatchWins(t *testing.T) {
	e := NewEngine(RatePolicy{ID: "default", Max: 100, Window: time.Minute})
	e.Load([]RatePolicy{
		{ID: "narrow", Path: "/api/auth/login", Max: 5, Window: time.Minute},
		{ID: "wide", Path: "/api/", Max: 50, Window: time.Minute},
	})

	assert.Equal(t, "narrow", e.Resolve("/api/auth/login").ID)
	assert.Equal(t, "wide", e.Resolve("/api/auth/signup").ID)
}

func TestSetDefault(t *testing.T) {
	e := NewEngine(RatePolicy{ID: "default", Max: 100, Window: time.Minute})

	e.SetDefault(RatePolicy{ID: "default", Max: 10, Window: time.Minute})

	assert.Equal(t, int64(10), e.Resolve("/anything").Max)
	assert.Equal(t, int64(10), e.Default().Max)
}
