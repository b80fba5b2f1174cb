package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"folio.dev/internal/obs"
)

type client struct {
	base string
	http *http.Client
}

func (c *client) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *client) expect(ctx context.Context, want int, method, path, token string, body, out any) error {
	code, err := c.call(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if code != want {
		return fmt.Errorf("%s %s: expected %d, got %d", method, path, want, code)
	}
	return nil
}

func (c *client) login(ctx context.Context, email string) (string, error) {
	var session struct {
		Token string `json:"token"`
	}
	if err := c.expect(ctx, http.StatusOK, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email}, &session); err != nil {
		return "", err
	}
	return session.Token, nil
}

func (c *client) waitReady(ctx context.Context) error {
	for {
		code, err := c.call(ctx, http.MethodGet, "/readyz", "", nil, nil)
		if err == nil && code == http.StatusOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("api not ready: %w", ctx.Err())
		case <-time.After(250 * time.Millisecond):
		}
	}
}

type item struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func run(ctx context.Context, c *client) (string, error) {
	if err := c.waitReady(ctx); err != nil {
		return "", err
	}
	author, err := c.login(ctx, envOr("FOLIO_SMOKE_AUTHOR", "author@test.com"))
	if err != nil {
		return "", err
	}
	admin, err := c.login(ctx, envOr("FOLIO_SMOKE_ADMIN", "admin@test.com"))
	if err != nil {
		return "", err
	}

	var created item
	title := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	if err := c.expect(ctx, http.StatusCreated, http.MethodPost, "/v1/content", author,
		map[string]string{"title": title, "body": "smoke test body"}, &created); err != nil {
		return "", err
	}
	path := "/v1/content/" + created.ID

	var it item
	if err := c.expect(ctx, http.StatusOK, http.MethodPost, path+"/submit", author, nil, &it); err != nil {
		return "", err
	}
	if err := c.expect(ctx, http.StatusForbidden, http.MethodPost, path+"/approve", author, nil, nil); err != nil {
		return "", err
	}
	if err := c.expect(ctx, http.StatusOK, http.MethodPost, path+"/approve", admin, nil, &it); err != nil {
		return "", err
	}
	if it.Status != "PUBLISHED" {
		return "", fmt.Errorf("expected PUBLISHED, got %s", it.Status)
	}

	var page struct {
		Items []struct {
			Action  string `json:"action"`
			Details string `json:"details"`
		} `json:"items"`
	}
	if err := c.expect(ctx, http.StatusOK, http.MethodGet, "/v1/audit?pageSize=5", admin, nil, &page); err != nil {
		return "", err
	}
	if len(page.Items) == 0 || page.Items[0].Action != "CONTENT_STATUS_CHANGED" || !strings.Contains(page.Items[0].Details, title) {
		return "", fmt.Errorf("latest audit entry does not describe the approval: %+v", page.Items)
	}

	// leave nothing behind
	if err := c.expect(ctx, http.StatusOK, http.MethodDelete, path, admin, nil, nil); err != nil {
		return "", err
	}
	if err := c.expect(ctx, http.StatusNoContent, http.MethodDelete, path+"/purge", admin, nil, nil); err != nil {
		return "", err
	}
	return created.ID, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	c := &client{
		base: strings.TrimRight(envOr("FOLIO_API_URL", "http://localhost:8080"), "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id, err := run(ctx, c)
	if err != nil {
		obs.Logger().Error("smoke test failed", "api", c.base, "error", err.Error())
		cancel()
		os.Exit(1)
	}
	fmt.Printf("✅ folio smoke test passed: content %s went DRAFT → REVIEW → PUBLISHED\n", id)
}
