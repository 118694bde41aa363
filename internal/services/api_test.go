package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
	tu "github.com/desertthunder/journeyx/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.BaseURL() != "http://localhost:8080" {
				t.Errorf("expected default base URL, got %s", srv.BaseURL())
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})

		t.Run("Trims Trailing Slash", func(t *testing.T) {
			srv := NewAPIService("http://example.com/api/", &http.Client{})

			if srv.BaseURL() != "http://example.com/api" {
				t.Errorf("expected trimmed base URL, got %s", srv.BaseURL())
			}
		})

		t.Run("Timeout Copies The Client", func(t *testing.T) {
			client := &http.Client{}
			srv := NewAPIServiceWithOpts(APIOpts{BaseURL: "http://example.com", HTTPClient: client, Timeout: time.Second})

			if srv.httpClient == client || srv.httpClient.Timeout != time.Second {
				t.Error("expected a copy of the client with the timeout set")
			}
			if client.Timeout != 0 {
				t.Error("expected the caller's client to be left alone")
			}
		})
	})

	t.Run("Raw Requests", func(t *testing.T) {
		backend := tu.NewBackend(t)
		backend.AddMission(&models.MissionDetail{ID: 21, Title: "Members"})
		srv := NewAPIService(backend.URL, nil)
		ctx := context.Background()

		t.Run("Get Decodes JSON", func(t *testing.T) {
			resp, err := srv.Get(ctx, "healthz")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK || !resp.IsJSON {
				t.Fatalf("expected a JSON 200, got %d (json %v)", resp.StatusCode, resp.IsJSON)
			}
			data, _ := resp.JSONData.(map[string]any)
			if data["status"] != "UP" {
				t.Errorf("expected status UP, got %v", resp.JSONData)
			}
			if ct := resp.Headers.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
		})

		t.Run("Error Statuses Are Returned, Not Raised", func(t *testing.T) {
			resp, err := srv.Get(ctx, "/journeys/999")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("expected 404, got %d", resp.StatusCode)
			}
		})

		t.Run("Put Writes Progress", func(t *testing.T) {
			resp, err := srv.Put(ctx, "/users/1/missions/21/progress", []byte(`{"watchPositionSeconds":42}`))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
			}
			if p, _ := backend.Progress(21); p.WatchPositionSeconds != 42 {
				t.Errorf("expected backend position 42, got %d", p.WatchPositionSeconds)
			}
		})

		t.Run("Post Sends A JSON Body", func(t *testing.T) {
			resp, err := srv.Post(ctx, "/users/1/missions/21/progress/deliver", []byte(`{}`))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode < 400 {
				t.Errorf("expected an uncompleted mission to be refused, got %d", resp.StatusCode)
			}
			if backend.CallCount("POST /users/1/missions/21/progress/deliver") != 1 {
				t.Error("expected the delivery request to reach the backend")
			}
		})
	})

	t.Run("Raw Non-JSON Body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("maintenance"))
		}))
		defer server.Close()

		resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.IsJSON || string(resp.Body) != "maintenance" {
			t.Errorf("expected the plain body back, got %q (json %v)", resp.Body, resp.IsJSON)
		}
	})

	t.Run("Raw Read Failure", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
			StatusCode: http.StatusOK,
			Body:       &tu.FCloser{},
			Header:     make(http.Header),
		}, nil)}

		if _, err := NewAPIService("http://example.com", client).Get(context.Background(), "/x"); err == nil {
			t.Error("expected read failure to be returned")
		}
	})
}

func TestAPIServiceDo(t *testing.T) {
	t.Run("Error Statuses Match Sentinels", func(t *testing.T) {
		tc := []struct {
			name   string
			status int
			want   error
		}{
			{name: "bad request", status: http.StatusBadRequest, want: shared.ErrBadRequest},
			{name: "unauthorized", status: http.StatusUnauthorized, want: shared.ErrNotAuthenticated},
			{name: "not found", status: http.StatusNotFound, want: shared.ErrNotFound},
			{name: "conflict", status: http.StatusConflict, want: shared.ErrConflict},
			{name: "gone", status: http.StatusGone, want: shared.ErrGone},
			{name: "server error", status: http.StatusBadGateway, want: shared.ErrServiceUnavailable},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.status)
					w.Write([]byte(`{"error":"nope","code":"E1"}`))
				}))
				defer server.Close()

				srv := NewAPIService(server.URL, nil)
				err := srv.do(context.Background(), http.MethodGet, "/x", nil, nil)

				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if !errors.Is(err, shared.ErrAPIRequest) {
					t.Errorf("expected every API error to match ErrAPIRequest, got %v", err)
				}
				if StatusCode(err) != tt.status {
					t.Errorf("expected status %d, got %d", tt.status, StatusCode(err))
				}

				var apiErr *APIError
				if errors.As(err, &apiErr) && (apiErr.Message != "nope" || apiErr.Code != "E1") {
					t.Errorf("expected message and code from body, got %+v", apiErr)
				}
			})
		}
	})

	t.Run("Plain Text Error Body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}))
		defer server.Close()

		err := NewAPIService(server.URL, nil).do(context.Background(), http.MethodGet, "/x", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Message != "boom" {
			t.Errorf("expected raw body as message, got %q", apiErr.Message)
		}
	})

	t.Run("Timeout Wraps ErrTimeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		srv := NewAPIServiceWithOpts(APIOpts{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
		err := srv.do(context.Background(), http.MethodGet, "/slow", nil, nil)

		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("Unauthorized Hook", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		var calls atomic.Int32
		srv := NewAPIServiceWithOpts(APIOpts{BaseURL: server.URL, OnUnauthorized: func() { calls.Add(1) }})
		_ = srv.do(context.Background(), http.MethodGet, "/a", nil, nil)
		_ = srv.do(context.Background(), http.MethodGet, "/b", nil, nil)

		if calls.Load() != 2 {
			t.Errorf("expected hook on every 401, got %d", calls.Load())
		}
	})

	t.Run("Limiter Honors Context", func(t *testing.T) {
		srv := NewAPIServiceWithOpts(APIOpts{BaseURL: "http://example.com", RequestsPerSecond: 0.001})
		srv.limiter.Allow()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		if err := srv.do(ctx, http.MethodGet, "/x", nil, nil); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected limiter wait to fail with ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Decodes JSON Body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var in map[string]int
			json.NewDecoder(r.Body).Decode(&in)
			json.NewEncoder(w).Encode(map[string]int{"doubled": in["n"] * 2})
		}))
		defer server.Close()

		var out struct {
			Doubled int `json:"doubled"`
		}
		err := NewAPIService(server.URL, nil).do(context.Background(), http.MethodPost, "/x", map[string]int{"n": 21}, &out)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Doubled != 42 {
			t.Errorf("expected 42, got %d", out.Doubled)
		}
	})
}
