// Package auth implements the email/password session client for the
// remote auth service (a GoTrue-compatible REST endpoint).
//
// Sessions are persisted to a file under the data directory so a cold
// start can restore the previous session without re-prompting for
// credentials.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionFileName is the persisted-session file kept under the data dir.
const SessionFileName = "auth-session.json"

// Session is an established auth session. The access token is a JWT whose
// exp claim is the authoritative expiry signal.
type Session struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Expired reports whether the session's access token has passed its exp
// claim. The token is parsed without signature verification: this client
// only needs the expiry, the server verifies signatures.
//
// A token that cannot be parsed is NOT reported as expired; the backend's
// rejection will surface it instead.
func (s *Session) Expired() bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s.AccessToken, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().After(exp.Time)
}

// Error is an auth service failure with its HTTP status, mapped to a
// user-facing message the way the desktop app presents them.
type Error struct {
	Status  int
	Message string // raw backend message
}

func (e *Error) Error() string {
	switch e.Status {
	case http.StatusBadRequest:
		if strings.Contains(e.Message, "Invalid login credentials") {
			return "incorrect email or password"
		}
		if strings.Contains(strings.ToLower(e.Message), "email") {
			return "invalid email address"
		}
		return "invalid credentials, please check your details"
	case http.StatusUnprocessableEntity:
		if strings.Contains(strings.ToLower(e.Message), "email") {
			return "this email address is already in use"
		}
		if strings.Contains(strings.ToLower(e.Message), "password") {
			return "password must be at least 6 characters"
		}
		return e.Message
	case http.StatusTooManyRequests:
		return "too many attempts, please try again in a moment"
	}
	if e.Message != "" {
		return e.Message
	}
	return "authentication failed"
}

// Client talks to the auth service and caches the current session.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	path    string

	mu        sync.Mutex
	session   *Session
	listeners map[int]func(*Session)
	nextID    int
}

// NewClient creates an auth client. baseURL points at the auth service
// root (e.g. https://host/auth/v1); dataDir is where the session file
// lives.
func NewClient(baseURL, apiKey, dataDir string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 15 * time.Second},
		path:      filepath.Join(dataDir, SessionFileName),
		listeners: make(map[int]func(*Session)),
	}
}

// Restore loads the persisted session, if any. A missing file is not an
// error; a corrupt file is discarded.
func (c *Client) Restore() error {
	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		_ = os.Remove(c.path)
		return nil
	}

	c.setSession(&session)
	return nil
}

// Session returns the current session, or nil when signed out.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// OnChange registers a listener invoked with the new session (nil on sign
// out) after every session change. The returned function detaches it.
func (c *Client) OnChange(fn func(*Session)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) setSession(session *Session) {
	c.mu.Lock()
	c.session = session
	fns := make([]func(*Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}

func (c *Client) persist(session *Session) {
	if session == nil {
		_ = os.Remove(c.path)
		return
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return
	}
	// Best effort: a failed persist only costs a re-login on next start.
	_ = os.WriteFile(c.path, payload, 0o600)
}

// tokenResponse is the GoTrue token/signup response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Message2         string `json:"message"`
}

func (e *errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	return e.Message2
}

// SignIn authenticates with email/password and caches the session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return c.grant(ctx, "/token?grant_type=password", email, password)
}

// SignUp registers a new account and caches the resulting session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return c.grant(ctx, "/signup", email, password)
}

func (c *Client) grant(ctx context.Context, path, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, path, "", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.Unmarshal(raw, &errResp)
		return nil, &Error{Status: resp.StatusCode, Message: errResp.text()}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("invalid auth response: %w", err)
	}
	if tr.User.ID == "" {
		return nil, errors.New("auth response carried no user")
	}

	session := &Session{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	c.persist(session)
	c.setSession(session)
	return session, nil
}

// SignOut revokes the session server-side (best effort) and clears the
// cached and persisted session.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session != nil && session.AccessToken != "" {
		resp, err := c.do(ctx, http.MethodPost, "/logout", session.AccessToken, nil)
		if err == nil {
			_ = resp.Body.Close()
		}
	}

	c.persist(nil)
	c.setSession(nil)
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	return resp, nil
}
