// Package tracker is the work-tracking backend client. It creates one
// remote work item per call against the Azure DevOps work item tracking
// API, authenticated with a personal access token.
package tracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/workitem"
)

// CreatedItem describes the remote resource returned by a successful
// creation call.
type CreatedItem struct {
	// ID is the remote work item id.
	ID int

	// Link is the retrievable HTML link to the created item. Always
	// non-empty: a 2xx response without it is reported as the
	// LINK_MISSING soft failure instead of success.
	Link string
}

// Client issues work item creation requests.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// New creates a tracker client. baseURL is typically https://dev.azure.com;
// tests point it at an httptest server.
func New(baseURL, apiVersion string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// patchOp is one JSON Patch operation in the creation body.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// createResponse is the subset of the creation descriptor we read.
type createResponse struct {
	ID    int `json:"id"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"_links"`
}

// errorResponse is the tracker's error payload shape.
type errorResponse struct {
	Message string `json:"message"`
}

// Create submits one record as a new work item. Credentials are read once
// at call start; each call creates exactly one remote resource on success.
// No idempotency key is sent, so retrying a failed call can create a
// duplicate if the first request reached the backend.
func (c *Client) Create(ctx context.Context, creds Credentials, rec workitem.Record) (*CreatedItem, error) {
	if !creds.Configured() {
		return nil, errors.NewNotConfigured()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	ops := []patchOp{
		{Op: "add", Path: "/fields/System.Title", Value: rec.Title},
	}
	if rec.Description != "" {
		ops = append(ops, patchOp{Op: "add", Path: "/fields/System.Description", Value: rec.Description})
	}
	if len(rec.Tags) > 0 {
		ops = append(ops, patchOp{Op: "add", Path: "/fields/System.Tags", Value: joinTags(rec.Tags)})
	}

	body, err := json.Marshal(ops)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/_apis/wit/workitems/%s?api-version=%s",
		c.baseURL,
		url.PathEscape(creds.Organization),
		url.PathEscape(creds.Project),
		url.PathEscape("$"+rec.Kind),
		url.QueryEscape(c.apiVersion),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json-patch+json")
	req.Header.Set("Authorization", basicAuth(creds.PAT))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewSubmissionFailed("")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewSubmissionFailed("")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewSubmissionFailed(backendMessage(resp.StatusCode, respBody))
	}

	var created createResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, errors.NewLinkMissing()
	}
	if created.Links.HTML.Href == "" {
		// Accepted without a retrievable link: the remote item may
		// exist, but we cannot hand the user a way to reach it.
		return nil, errors.NewLinkMissing()
	}

	return &CreatedItem{
		ID:   created.ID,
		Link: created.Links.HTML.Href,
	}, nil
}

// basicAuth builds the Authorization header for PAT auth: basic auth with
// an empty username and the token as password.
func basicAuth(pat string) string {
	token := base64.StdEncoding.EncodeToString([]byte(":" + pat))
	return "Basic " + token
}

// backendMessage extracts the tracker's error detail, falling back to a
// status-based message when the payload is unusable.
func backendMessage(status int, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		return er.Message
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "the tracker rejected the personal access token"
	case http.StatusNotFound:
		return "organization or project not found"
	default:
		return fmt.Sprintf("the tracker returned status %d", status)
	}
}

// joinTags renders tags in the tracker's semicolon-separated field format.
func joinTags(tags []string) string {
	return strings.Join(tags, "; ")
}
