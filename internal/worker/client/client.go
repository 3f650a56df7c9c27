// Package client implements the worker's synchronous RPC client against
// the broker's HTTP surface. Every call carries a hard FetchTimeout and
// normalizes any transport, network, or JSON failure into a uniform
// *Error — never an exception crossing into the autonomous loop. This
// uniformity is what makes the loop's error handling tractable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FetchTimeout bounds every RPC the worker makes to the broker.
const FetchTimeout = 5 * time.Second

// Kind mirrors the broker's error taxonomy as observed from the worker
// side of the wire.
type Kind string

const (
	KindUnavailable       Kind = "unavailable"
	KindInvalidArgument   Kind = "invalid_argument"
	KindNotFound          Kind = "not_found"
	KindResourceExhausted Kind = "resource_exhausted"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindUnknown           Kind = "unknown"
)

// Error is the uniform shape every RPC wrapper returns on failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Client is a synchronous HTTP/JSON client for the broker's RPC surface.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a Client bound to baseURL (e.g. "http://localhost:4800").
func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: FetchTimeout},
		logger:  logger.Named("worker_client"),
	}
}

type wireError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *wireError      `json:"error"`
}

// call issues method/path with body (nil for no body) and decodes the
// "data" field of the response envelope into out. Every failure mode —
// dial error, timeout, non-2xx status, malformed JSON, or a broker-side
// {error} envelope — is normalized to *Error.
func (c *Client) call(ctx context.Context, method, path string, body, out any) *Error {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return newError(KindInvalidArgument, "encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return newError(KindUnavailable, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return newError(KindUnavailable, "%v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return newError(KindUnavailable, "decode response: %v", err)
	}

	if env.Error != nil {
		return newError(Kind(env.Error.Kind), "%s", env.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return newError(KindUnknown, "unexpected status %d", resp.StatusCode)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return newError(KindUnavailable, "decode data: %v", err)
		}
	}
	return nil
}

// IsCapabilityMissing reports whether err indicates that a host
// capability (notably sampling) is unsupported, by matching the known
// substring hints: "-32601", "Method not found", "does not support
// sampling".
func IsCapabilityMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range []string{"-32601", "Method not found", "does not support sampling"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
