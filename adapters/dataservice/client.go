package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"datalens/domain/filter"
	"datalens/domain/plot"
	"datalens/domain/table"
	"datalens/internal/errors"
)

// Config holds client settings for the remote data service.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxInFlight int64
}

// Client talks to the remote statistics/plotting service. Outbound
// calls are bounded by a weighted semaphore so a burst of interactions
// cannot pile connections onto the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sem        *semaphore.Weighted
}

// NewClient creates a data service client from config. Zero values get
// workable defaults.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.ConfigInvalid("data service base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = 4
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		sem:        semaphore.NewWeighted(maxInFlight),
	}, nil
}

// UploadCSV posts the file as multipart form data under the `file`
// field and decodes the four-field table payload.
func (c *Client) UploadCSV(ctx context.Context, filename string, file io.Reader) (*table.Payload, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, "build upload form")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.Wrap(err, "copy upload contents")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "finalize upload form")
	}

	raw, err := c.do(ctx, "/upload_csv", writer.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	return decodeTablePayload(raw)
}

// RemoveNA requests row removal for rows with missing values in the
// given columns; an empty slice scopes the drop to all columns.
func (c *Client) RemoveNA(ctx context.Context, columns []string) (*table.Payload, error) {
	body := map[string]interface{}{}
	if len(columns) > 0 {
		body["columns"] = columns
	}
	raw, err := c.postJSON(ctx, "/remove_na", body)
	if err != nil {
		return nil, err
	}
	return decodeTablePayload(raw)
}

// FilterByValue restricts rows to the given discrete set or numeric
// [min, max] pair.
func (c *Client) FilterByValue(ctx context.Context, column string, values []interface{}) (*table.Payload, error) {
	raw, err := c.postJSON(ctx, "/filter_by_value", map[string]interface{}{
		"column": column,
		"values": values,
	})
	if err != nil {
		return nil, err
	}
	return decodeTablePayload(raw)
}

// ColumnValues fetches the picker payload for one column. The numeric
// flag carries the column's classified kind and gates the range
// interpretation of the response.
func (c *Client) ColumnValues(ctx context.Context, column string, numeric bool) (*filter.ColumnValues, error) {
	raw, err := c.postJSON(ctx, "/get_column_values", map[string]interface{}{
		"column": column,
	})
	if err != nil {
		return nil, err
	}
	return decodeColumnValues(column, numeric, raw)
}

// PlotScatter submits the full plot configuration and parses the
// returned figure description string.
func (c *Client) PlotScatter(ctx context.Context, cfg plot.Config) (*plot.Figure, error) {
	raw, err := c.postJSON(ctx, "/plot_scatter", cfg)
	if err != nil {
		return nil, err
	}
	return decodeFigure(raw)
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s request", path)
	}
	return c.do(ctx, path, "application/json", bytes.NewReader(raw))
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.TransportError("data", err)
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", path)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.TransportError("data", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.TransportError("data", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.TransportError("data",
			fmt.Errorf("%s returned http %d: %s", path, resp.StatusCode, truncate(raw, 200)))
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
