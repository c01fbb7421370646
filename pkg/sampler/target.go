package sampler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/attendbench/pkg/records"
)

// Response is what the sampler keeps from one query reply.
type Response struct {
	Source string
	Rows   int
}

// Target issues one attendance query.
type Target interface {
	Query(ctx context.Context, key records.Key) (Response, error)
}

// HTTPTarget queries a running query service over HTTP.
type HTTPTarget struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTarget creates a target for the service at baseURL, e.g.
// "http://127.0.0.1:5000".
func NewHTTPTarget(baseURL string, client *http.Client) *HTTPTarget {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTarget{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Query calls GET /attendance and reads the whole body before returning, so
// the elapsed time measured around it covers the full response.
func (t *HTTPTarget) Query(ctx context.Context, key records.Key) (Response, error) {
	q := url.Values{}
	q.Set("user", strconv.FormatInt(key.UserID, 10))
	q.Set("start", key.Start.String())
	q.Set("end", key.End.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/attendance?"+q.Encode(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to query service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error").String()
		return Response{}, fmt.Errorf("service returned status %d: %s", resp.StatusCode, msg)
	}

	source := gjson.GetBytes(body, "source")
	if !source.Exists() {
		return Response{}, fmt.Errorf("source not found in response")
	}

	return Response{
		Source: source.String(),
		Rows:   int(gjson.GetBytes(body, "rows.#").Int()),
	}, nil
}
