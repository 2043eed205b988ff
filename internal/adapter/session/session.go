package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/recall/internal/domain"
)

const (
	defaultTimeout = 60 * time.Second

	// LoginPath is the token login endpoint, relative to the API base URL
	LoginPath = "/auth/token/login/"
	// CurrentUserPath returns the user owning the token
	CurrentUserPath = "/auth/users/me/"
)

// User is the account behind the session token
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// tokenResponse is the login endpoint payload
type tokenResponse struct {
	AuthToken string `json:"auth_token"`
}

// Session implements domain.Session over HTTP with token authentication
type Session struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Session
type Option func(*Session)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		s.httpClient = c
	}
}

// New creates a session against baseURL. token may be empty until Authenticate succeeds.
func New(baseURL, token string, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the current credential
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is held
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Logout forgets the token
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Authenticate posts credentials to path and stores the returned token
func (s *Session) Authenticate(ctx context.Context, path string, credentials any) error {
	body, err := s.doRequest(ctx, http.MethodPost, path, credentials, "")
	if err != nil {
		return err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}
	if resp.AuthToken == "" {
		return fmt.Errorf("%w: login response carried no token", domain.ErrAuthFailed)
	}

	s.mu.Lock()
	s.token = resp.AuthToken
	s.mu.Unlock()

	s.logger.Info("authenticated", "path", path)
	return nil
}

// CurrentUser returns the account the token belongs to
func (s *Session) CurrentUser(ctx context.Context) (*User, error) {
	body, err := s.AuthenticatedRequest(ctx, http.MethodGet, CurrentUserPath, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	return &user, nil
}

// AuthenticatedRequest sends a request carrying the session token
func (s *Session) AuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	token := s.Token()
	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return s.doRequest(ctx, method, path, body, token)
}

// doRequest performs an HTTP request against the API and returns the response body.
// Transport failures map to ErrServerOffline, 401 to ErrAuthFailed and any
// other non-2xx status to *domain.ServerError. No retries.
func (s *Session) doRequest(ctx context.Context, method, path string, body any, token string) ([]byte, error) {
	reqURL := s.baseURL + "/" + strings.TrimLeft(path, "/")

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	s.logger.Debug("api request", "method", method, "url", reqURL)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Cancellation is the caller's doing, not an outage
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Error("api request failed", "error", err, "method", method, "url", reqURL)
		return nil, fmt.Errorf("%w: %w", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, domain.ErrAuthFailed
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("api request error", "status", resp.StatusCode, "method", method, "path", path, "body", string(respBody))
		return nil, &domain.ServerError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   string(respBody),
		}
	}

	return respBody, nil
}
