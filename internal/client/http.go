package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"frame-relay-go/internal/types"
)

const maxReplySize = 64 << 20

// Client talks to a relay's /time and /get_frame endpoints. No per-request
// timeout is applied; a hung request only delays its own poll cycle.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) ServerTime(ctx context.Context) (float64, error) {
	var reply types.TimeReply
	if err := c.getJSON(ctx, "/time", &reply); err != nil {
		return 0, err
	}
	return reply.ServerTime, nil
}

func (c *Client) Frame(ctx context.Context) (types.FrameReply, error) {
	var reply types.FrameReply
	if err := c.getJSON(ctx, "/get_frame", &reply); err != nil {
		return types.FrameReply{}, err
	}
	return reply, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http_%d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
