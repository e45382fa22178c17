package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "chorebot/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"

	pageSize = 100
	maxPages = 50
)

var ErrMissingCredentials = errors.New("notion: token and database id are required")

// Config configures the database query client.
type Config struct {
	Token      string
	DatabaseID string
	Version    string        // Notion-Version header; default DefaultVersion
	BaseURL    string        // default DefaultBaseURL
	Timeout    time.Duration // per request; default 15s
}

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion api: http %d", e.Status)
	}
	return fmt.Sprintf("notion api: http %d %s: %s", e.Status, e.Code, e.Message)
}

// Client queries one Notion database.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.DatabaseID = strings.TrimSpace(cfg.DatabaseID)
	if cfg.Token == "" || cfg.DatabaseID == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}, nil
}

type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size"`
}

type queryResponse struct {
	Results    []page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// queryAll returns every page of the database, following next_cursor.
func (c *Client) queryAll(ctx context.Context) ([]page, error) {
	var (
		out    []page
		cursor string
	)
	for i := 0; i < maxPages; i++ {
		resp, err := c.query(ctx, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return out, nil
		}
		cursor = *resp.NextCursor
	}
	return nil, fmt.Errorf("notion: more than %d result pages", maxPages)
}

func (c *Client) query(ctx context.Context, cursor string) (*queryResponse, error) {
	body, err := json.Marshal(queryRequest{StartCursor: cursor, PageSize: pageSize})
	if err != nil {
		return nil, err
	}
	url := c.cfg.BaseURL + "/v1/databases/" + c.cfg.DatabaseID + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Notion-Version", c.cfg.Version)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("notion query",
		logx.Int("status", resp.StatusCode),
		logx.Bool("cursor", cursor != ""),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(raw) > 0 && json.Unmarshal(raw, &eb) == nil {
			apiErr.Code, apiErr.Message = eb.Code, eb.Message
		}
		return nil, apiErr
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("notion query: decode: %w", err)
	}
	return &out, nil
}
