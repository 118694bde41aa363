package shared

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
)

func TestFloorSeconds(t *testing.T) {
	tc := []struct {
		name string
		pos  float64
		want int
	}{
		{name: "fraction is dropped", pos: 12.97, want: 12},
		{name: "whole seconds unchanged", pos: 30, want: 30},
		{name: "just below next second", pos: 59.9999, want: 59},
		{name: "zero", pos: 0, want: 0},
		{name: "negative", pos: -3.5, want: 0},
		{name: "NaN", pos: math.NaN(), want: 0},
		{name: "infinity", pos: math.Inf(1), want: 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FloorSeconds(tt.pos); got != tt.want {
				t.Errorf("FloorSeconds(%v) = %d, want %d", tt.pos, got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("NewLogger writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello", "mission", 42)

		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("expected log output to contain message, got %q", buf.String())
		}
	})

	t.Run("WithLogger tolerates nil", func(t *testing.T) {
		if WithLogger(nil, "component", "test") == nil {
			t.Error("expected a logger")
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		if got := ParseLogLevel("DEBUG"); got != log.DebugLevel {
			t.Errorf("expected debug level, got %v", got)
		}
		if got := ParseLogLevel("nonsense"); got != log.InfoLevel {
			t.Errorf("expected info fallback, got %v", got)
		}
	})
}

func TestParseAccessToken(t *testing.T) {
	sign := func(t *testing.T, claims jwt.Claims) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return raw
	}

	t.Run("reads subject and expiry", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		raw := sign(t, accessClaims{
			Username: "learner",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "123",
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		})

		claims, err := ParseAccessToken(raw)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if claims.UserID != 123 {
			t.Errorf("expected user 123, got %d", claims.UserID)
		}
		if claims.Username != "learner" {
			t.Errorf("expected username learner, got %s", claims.Username)
		}
		if !claims.ExpiresAt.Equal(exp) {
			t.Errorf("expected expiry %v, got %v", exp, claims.ExpiresAt)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseAccessToken("not-a-token")
		if !errors.Is(err, ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("rejects non-numeric subject", func(t *testing.T) {
		raw := sign(t, jwt.RegisteredClaims{Subject: "abc"})
		if _, err := ParseAccessToken(raw); !errors.Is(err, ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})
}
