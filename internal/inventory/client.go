package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrUnauthorized = errors.New("inventory: unauthorized")

// Client holds the service's own login token. The token is fetched lazily and
// refreshed once when a call comes back 401.
type Client struct {
	BaseURL  string
	Email    string
	Password string
	HTTP     *http.Client
	Log      *zap.Logger

	mu    sync.Mutex
	token string
}

func NewClient(baseURL, email, password string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Email:    email,
		Password: password,
		HTTP:     &http.Client{Timeout: timeout},
		Log:      log,
	}
}

type loginResp struct {
	Token string `json:"token"`
}

func (c *Client) login(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": c.Email, "password": c.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("inventory login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inventory login: status %d", resp.StatusCode)
	}
	var lr loginResp
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("inventory login: %w", err)
	}
	if lr.Token == "" {
		return "", errors.New("inventory login: empty token")
	}
	return lr.Token, nil
}

func (c *Client) currentToken(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && !refresh {
		return c.token, nil
	}
	tok, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.token = tok
	return tok, nil
}

// get decodes a JSON GET response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	tok, err := c.currentToken(ctx, false)
	if err != nil {
		return err
	}
	err = c.getWith(ctx, tok, path, out)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}
	c.Log.Info("inventory token rejected, logging in again")
	if tok, err = c.currentToken(ctx, true); err != nil {
		return err
	}
	return c.getWith(ctx, tok, path, out)
}

func (c *Client) getWith(ctx context.Context, tok, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", tok)
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("inventory GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("inventory GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("inventory GET %s: %w", path, err)
	}
	return nil
}
