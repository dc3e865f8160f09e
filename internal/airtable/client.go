// Package airtable is a minimal client for the Airtable REST API, scoped to
// the one table this service reads and writes. Transient failures retry
// with exponential backoff; auth and addressing failures surface
// immediately with a hint naming the likely misconfiguration.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"vhsops/internal/config"
)

// Record is one raw row as the source returns it: an opaque field-name to
// value mapping plus the row's creation time.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to one base/table/view.
type Client struct {
	cfg  config.Config
	http *http.Client
	log  *zap.SugaredLogger
}

func New(cfg config.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

func (c *Client) checkConfigured() error {
	if c.cfg.AirtableAPIKey == "" {
		return errors.WithHint(
			errors.New("missing AIRTABLE_API_KEY"),
			"Set AIRTABLE_API_KEY to a personal access token with data.records scopes.")
	}
	if c.cfg.AirtableBaseID == "" || !hasPrefix(c.cfg.AirtableBaseID, "app") {
		return errors.WithHint(
			errors.Newf("invalid AIRTABLE_BASE_ID %q", c.cfg.AirtableBaseID),
			"Use only the base id (app...), or app.../tbl.../viw... and the segments are parsed apart automatically.")
	}
	return nil
}

func hasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}

// ListRecords fetches the full raw record set, sorted by the configured
// received-date field descending, paging until exhausted or MaxRecords.
func (c *Client) ListRecords(ctx context.Context) ([]Record, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	var out []Record
	offset := ""
	for {
		q := url.Values{}
		q.Set("pageSize", "100")
		q.Set("maxRecords", strconv.Itoa(c.cfg.MaxRecords))
		q.Set("sort[0][field]", c.cfg.Fields.ReceivedDate)
		q.Set("sort[0][direction]", "desc")
		if c.cfg.AirtableViewID != "" {
			q.Set("view", c.cfg.AirtableViewID)
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listResponse
		err := c.doWithRetry(ctx, func() (*http.Request, error) {
			return c.newRequest(ctx, http.MethodGet, c.tableURL()+"?"+q.Encode(), nil)
		}, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" || len(out) >= c.cfg.MaxRecords {
			return out, nil
		}
		offset = page.Offset
	}
}

// GetRecord fetches a single row by id.
func (c *Client) GetRecord(ctx context.Context, id string) (Record, error) {
	var rec Record
	if err := c.checkConfigured(); err != nil {
		return rec, err
	}
	err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, c.tableURL()+"/"+url.PathEscape(id), nil)
	}, &rec)
	return rec, err
}

// UpdateRecord patches the given fields on one row. The write is a plain
// pass-through; the read pipeline picks the change up on its next fetch.
func (c *Client) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	if err := c.checkConfigured(); err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return err
	}
	var rec Record
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPatch, c.tableURL()+"/"+url.PathEscape(id), body)
	}, &rec)
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/v0/%s/%s",
		c.cfg.AirtableEndpoint, c.cfg.AirtableBaseID, url.PathEscape(c.cfg.AirtableTableRef))
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AirtableAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doWithRetry runs one request, retrying transient failures with capped
// exponential backoff and decoding the final response into out.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error), out any) error {
	delay := c.cfg.FetchBaseDelay
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "airtable fetch cancelled")
			case <-time.After(delay):
			}
			delay *= 2
			c.log.Debugw("retrying airtable request", "attempt", attempt)
		}

		req, err := build()
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = errors.Wrap(err, "airtable request failed")
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = errors.Wrap(readErr, "airtable response read failed")
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if out == nil {
					return nil
				}
				return errors.Wrap(json.Unmarshal(body, out), "airtable response decode failed")
			} else {
				statusErr := classifyStatus(resp.StatusCode, body)
				if terminalStatus(resp.StatusCode) {
					return statusErr
				}
				lastErr = statusErr
			}
		}

		if attempt >= c.cfg.FetchRetries {
			return lastErr
		}
	}
}

func terminalStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusNotFound
}

func classifyStatus(code int, body []byte) error {
	msg := ""
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
		msg = ": " + ae.Error.Message
	}
	base := errors.Newf("airtable returned %d%s", code, msg)
	switch code {
	case http.StatusUnauthorized:
		return errors.WithHint(base,
			"Airtable auth failed (401). Ensure AIRTABLE_API_KEY is the full token value copied exactly.")
	case http.StatusForbidden:
		return errors.WithHint(base,
			"Airtable permission denied (403). Ensure the token has required scopes and access to this base.")
	case http.StatusNotFound:
		return errors.WithHint(base,
			"Airtable base/table/view not found. Verify AIRTABLE_BASE_ID, AIRTABLE_TABLE_NAME (or table id), and AIRTABLE_VIEW_NAME.")
	}
	return base
}
