// Package gitlab is a thin pass-through client for the parts of the GitLab
// REST and GraphQL APIs the portal shows to a logged-in user.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	restPrefix   = "/api/v4"
	graphQLPath  = "/api/graphql"
	activityPage = 100
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// New returns a client for the GitLab instance at baseURL, e.g. https://gitlab.com.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON GETs a REST path (relative to /api/v4, query string allowed)
// and decodes the body into out.
func (c *Client) FetchJSON(ctx context.Context, path, accessToken string, out any) error {
	resp, err := c.get(ctx, path, accessToken)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, path, out)
}

func (c *Client) get(ctx context.Context, path, accessToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+restPrefix+path, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab: build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gitlab: fetch %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, upstreamError(resp, path)
	}
	return resp, nil
}

// FetchAllActivity returns the user's newest activity events. It reads one
// full page of 100 and, when X-Total says there is more, appends only the
// first event of page 2. This is a deliberate peek, not full pagination.
func (c *Client) FetchAllActivity(ctx context.Context, accessToken string) ([]Event, error) {
	first := fmt.Sprintf("/events?per_page=%d", activityPage)

	resp, err := c.get(ctx, first, accessToken)
	if err != nil {
		return nil, err
	}
	var events []Event
	err = decode(resp, first, &events)
	total, _ := strconv.Atoi(resp.Header.Get("X-Total"))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if total <= activityPage {
		return events, nil
	}

	var next []Event
	if err := c.FetchJSON(ctx, fmt.Sprintf("/events?per_page=%d&page=2", activityPage), accessToken, &next); err != nil {
		return nil, err
	}
	if len(next) > 0 {
		events = append(events, next[0])
	}
	return events, nil
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchGraphQL POSTs query to the GraphQL endpoint and decodes the data
// member of the response into out.
func (c *Client) FetchGraphQL(ctx context.Context, query, accessToken string, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return fmt.Errorf("gitlab: encode graphql query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+graphQLPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gitlab: build graphql request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gitlab: graphql: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp, graphQLPath)
	}

	var gr graphQLResponse
	if err := decode(resp, graphQLPath, &gr); err != nil {
		return err
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		return &GraphQLError{Messages: msgs}
	}
	if out == nil || len(gr.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("gitlab: decode graphql data: %w", err)
	}
	return nil
}

func decode(resp *http.Response, path string, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gitlab: decode %s: %w", path, err)
	}
	return nil
}

func upstreamError(resp *http.Response, path string) *UpstreamError {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return &UpstreamError{
		Status:     resp.StatusCode,
		StatusText: text,
		Path:       path,
	}
}
