package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
	"golang.org/x/oauth2"
)

// Session is an authenticated user as returned by login or refresh.
type Session struct {
	AccessToken string
	UserID      int64
	Username    string
	ExpiresAt   time.Time
	User        models.UserInfo
}

// Token converts the session into a bearer [oauth2.Token].
func (s *Session) Token() *oauth2.Token {
	return &oauth2.Token{AccessToken: s.AccessToken, TokenType: "Bearer", Expiry: s.ExpiresAt}
}

// NewSession builds a session from a raw access token, reading user id and expiry from its claims.
// When the token carries no subject the id falls back to the user info.
func NewSession(accessToken string, user models.UserInfo) (*Session, error) {
	claims, err := shared.ParseAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	s := &Session{
		AccessToken: accessToken,
		UserID:      claims.UserID,
		Username:    claims.Username,
		ExpiresAt:   claims.ExpiresAt,
		User:        user,
	}
	if s.UserID == 0 && user.ID != "" {
		if s.UserID, err = strconv.ParseInt(user.ID, 10, 64); err != nil {
			return nil, fmt.Errorf("%w: non-numeric user id %q", shared.ErrAuthFailed, user.ID)
		}
	}
	if s.Username == "" {
		s.Username = user.Username
	}
	if s.UserID == 0 {
		return nil, fmt.Errorf("%w: token has no user", shared.ErrAuthFailed)
	}
	return s, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string          `json:"accessToken"`
	User        models.UserInfo `json:"user"`
}

// RegisterResult is the backend's answer to a registration.
type RegisterResult struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// UserProfile is the authenticated user's profile.
type UserProfile struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	ExperiencePoints int    `json:"experiencePoints"`
	Level            int    `json:"level"`
	Role             string `json:"role"`
}

// Login exchanges credentials for a session. Rejected credentials return [shared.ErrAuthFailed].
func (a *APIService) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password", shared.ErrMissingArgument)
	}

	var out tokenResponse
	if err := a.do(ctx, http.MethodPost, "/auth/login", credentials{username, password}, &out); err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrBadRequest) {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return nil, err
	}
	return NewSession(out.AccessToken, out.User)
}

// Register creates an account. It does not log in.
func (a *APIService) Register(ctx context.Context, username, password string) (*RegisterResult, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password", shared.ErrMissingArgument)
	}

	var out RegisterResult
	if err := a.do(ctx, http.MethodPost, "/auth/register", credentials{username, password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the server-side session.
func (a *APIService) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Refresh obtains a new access token using the refresh cookie held by the HTTP client's jar.
func (a *APIService) Refresh(ctx context.Context) (*Session, error) {
	var out tokenResponse
	if err := a.do(ctx, http.MethodPost, "/auth/refresh", nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	s, err := NewSession(out.AccessToken, out.User)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return s, nil
}

// Me fetches the authenticated user's profile.
func (a *APIService) Me(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := a.do(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type refreshSource struct {
	ctx       context.Context
	api       *APIService
	onRefresh func(*Session)
}

func (r *refreshSource) Token() (*oauth2.Token, error) {
	s, err := r.api.Refresh(r.ctx)
	if err != nil {
		return nil, err
	}
	if r.onRefresh != nil {
		r.onRefresh(s)
	}
	return s.Token(), nil
}

// TokenSource serves the session's token until it expires and then refreshes it through
// [APIService.Refresh]. Concurrent callers share a single refresh.
//
// The receiver must not itself authenticate through the returned source.
func (a *APIService) TokenSource(ctx context.Context, initial *Session, onRefresh func(*Session)) oauth2.TokenSource {
	var tok *oauth2.Token
	if initial != nil {
		tok = initial.Token()
	}
	return oauth2.ReuseTokenSource(tok, &refreshSource{ctx: ctx, api: a, onRefresh: onRefresh})
}

// AuthenticatedClient wraps base so that every request carries the bearer token from ts.
func AuthenticatedClient(base *http.Client, ts oauth2.TokenSource) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
		Jar:       base.Jar,
		Timeout:   base.Timeout,
	}
}

// HealthStatus is the backend health report.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Up reports whether the service and its database are healthy.
func (h HealthStatus) Up() bool {
	return h.Status == "UP" && h.Database == "UP"
}

// Health checks the backend. A degraded backend still yields a status with a nil error when it answers 2xx.
func (a *APIService) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := a.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		if errors.Is(err, shared.ErrServiceUnavailable) {
			return &HealthStatus{Status: "DOWN", Database: "DOWN"}, err
		}
		return nil, err
	}
	return &out, nil
}
