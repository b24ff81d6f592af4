package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const authPath = "/auth/v1"

// apiError is GoTrue's error envelope. Older releases use error/error_description,
// newer ones msg/error_code.
type apiError struct {
	Status      int    `json:"-"`
	Code        string `json:"error_code"`
	Msg         string `json:"msg"`
	Err         string `json:"error"`
	Description string `json:"error_description"`
}

func (e *apiError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Description
	}
	if msg == "" {
		msg = e.Err
	}
	return fmt.Sprintf("gotrue: %d %s", e.Status, msg)
}

type client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	http       *http.Client
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// bearer overrides the anon key in Authorization.
	bearer string
	admin  bool
}

func (c *client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + authPath + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("gotrue: encode %s: %w", r.path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("gotrue: build %s: %w", r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	key, bearer := c.anonKey, c.anonKey
	if r.admin {
		key, bearer = c.serviceKey, c.serviceKey
	}
	if r.bearer != "" {
		bearer = r.bearer
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gotrue: read %s: %w", r.path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		ae := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, ae)
		return ae
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gotrue: decode %s: %w", r.path, err)
	}
	return nil
}

func statusOf(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func codeOf(err error) string {
	var ae *apiError
	if errors.As(err, &ae) {
		if ae.Code != "" {
			return ae.Code
		}
		return strings.ToLower(ae.Msg + " " + ae.Description)
	}
	return ""
}

type gotrueUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	AppMetadata      map[string]any `json:"app_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         *gotrueUser `json:"user"`
}
