// Package api talks to the REST side of the server: account registration,
// login and the saved session token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"spacedan/shared/protocol"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
)

type Client struct {
	Base      string
	TokenPath string
	HTTP      *http.Client
}

func New(base, tokenPath string) *Client {
	return &Client{Base: strings.TrimRight(base, "/"), TokenPath: tokenPath, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) post(ctx context.Context, path string, in, out any) (int, error) {
	b, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	code, err := c.post(ctx, "/api/register", protocol.RegisterReq{Username: username, Password: password, PasswordConfirm: password}, nil)
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return ErrUsernameTaken
	default:
		return fmt.Errorf("register failed: status %d", code)
	}
}

// Login authenticates and saves the token for later runs.
func (c *Client) Login(ctx context.Context, username, password string) (*protocol.LoginResp, error) {
	var out protocol.LoginResp
	code, err := c.post(ctx, "/api/login", protocol.LoginReq{Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if code == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("login failed: status %d", code)
	}
	if err := c.SaveSession(out); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &out, nil
}

// SaveSession persists the login response so the chat command can reuse it.
func (c *Client) SaveSession(s protocol.LoginResp) error {
	if c.TokenPath == "" {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(c.TokenPath, b, 0o600)
}

// LoadSession returns the saved session, or nil when there is none.
func (c *Client) LoadSession() *protocol.LoginResp {
	b, err := os.ReadFile(c.TokenPath)
	if err != nil {
		return nil
	}
	var s protocol.LoginResp
	if json.Unmarshal(b, &s) != nil || strings.TrimSpace(s.Token) == "" {
		return nil
	}
	return &s
}

func (c *Client) ClearSession() error {
	err := os.Remove(c.TokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
