package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrRejected        = errors.New("content rejected by server")
	ErrUnauthenticated = errors.New("login required")
	ErrForbidden       = errors.New("admin privileges required")
	ErrNotFound        = errors.New("page not found")
	ErrServer          = errors.New("server failed to store content")
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is a non-2xx answer from the content endpoint.
type StatusError struct {
	StatusCode int
	Message    string
	Fields     map[string]any
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("save failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("save failed with status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto one of the sentinel errors above.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusBadRequest:
		return ErrRejected
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthenticated
	case e.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrServer
	}
	return nil
}

// Retryable reports whether resending the same content may succeed. Upserts are
// idempotent, so transport failures and 5xx answers qualify.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode >= 500 || status.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// HTTPSaver 通过 PATCH /pages/{slug}/content 提交整页内容。
type HTTPSaver struct {
	baseURL string
	client  Doer
	header  http.Header
}

// NewHTTPSaver builds a saver against baseURL. A nil client falls back to an
// http.Client with a timeout.
func NewHTTPSaver(baseURL string, client Doer) *HTTPSaver {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPSaver{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
		header:  http.Header{},
	}
}

// SetHeader adds a header sent with every save, e.g. a session cookie.
func (h *HTTPSaver) SetHeader(key, value string) {
	h.header.Set(key, value)
}

type errorBody struct {
	Error  string         `json:"error"`
	Fields map[string]any `json:"fields"`
}

// Save implements Saver.
func (h *HTTPSaver) Save(ctx context.Context, slug string, content Content) error {
	body, err := json.Marshal(normalize(content))
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	endpoint := h.baseURL + "/pages/" + url.PathEscape(slug) + "/content"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build save request: %w", err)
	}
	for key, values := range h.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("save %s: %w", slug, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read save response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode}
	var decoded errorBody
	if json.Unmarshal(respBody, &decoded) == nil {
		statusErr.Message = decoded.Error
		statusErr.Fields = decoded.Fields
	}
	return statusErr
}
