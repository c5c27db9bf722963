// Package client talks to the puff-meter HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/arjunvm/puffmeter/internal/model"
)

// APIError carries the server's status code and error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server: %s (HTTP %d)", e.Message, e.Status)
}

// Client is a thin wrapper over the JSON API. Token may be empty for
// unauthenticated calls.
type Client struct {
	base   string
	token  string
	http   *http.Client
	stream *http.Client
}

func New(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
		// The event stream stays open indefinitely, so only connection
		// setup is bounded here; Client.Timeout would cut the body read.
		stream: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}
}

type loginResponse struct {
	model.Tokens
	User model.User `json:"user"`
}

func (c *Client) Register(ctx context.Context, fullName, email, password string) (*model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodPost, "/api/register", map[string]string{
		"full_name": fullName,
		"email":     email,
		"password":  password,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (model.Tokens, model.User, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/api/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return resp.Tokens, resp.User, nil
}

func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &st)
	return st, err
}

func (c *Client) Purchase(ctx context.Context, category model.Category, quantity int) (*model.Purchase, error) {
	var p model.Purchase
	err := c.do(ctx, http.MethodPost, "/api/purchase", map[string]any{
		"puff_type": category,
		"quantity":  quantity,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Leaderboard(ctx context.Context) ([]model.LeaderboardRow, error) {
	var rows []model.LeaderboardRow
	err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, &rows)
	return rows, err
}

func (c *Client) Achievements(ctx context.Context) ([]model.Achievement, error) {
	var out []model.Achievement
	err := c.do(ctx, http.MethodGet, "/api/achievements", nil, &out)
	return out, err
}

// WatchStats subscribes to the server-sent event stream and invokes fn for
// every stock update until ctx is canceled or the stream breaks.
func (c *Client) WatchStats(ctx context.Context, fn func(model.Stats)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/stats/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var st model.Stats
		if err := json.Unmarshal([]byte(payload), &st); err != nil {
			continue
		}
		fn(st)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return sc.Err()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}
