package gate

import (
	"context"
	"fmt"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/request"
)

// Client asks the remote narration backend.
type Client struct {
	http *request.Client
	url  string
}

// NewClient returns a Gate posting to url.
func NewClient(c *request.Client, url string) *Client {
	return &Client{http: c, url: url}
}

// Check implements Gate.
func (c *Client) Check(ctx context.Context, req Request) (Decision, error) {
	body, err := c.http.PostJSON(ctx, c.url, req)
	if err != nil {
		return Decision{}, fmt.Errorf("check narration: %w", err)
	}
	d, err := request.DecodeJSON[Decision](body)
	if err != nil {
		return Decision{}, fmt.Errorf("check narration: %w", err)
	}
	return d, nil
}
