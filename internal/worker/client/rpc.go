package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/skvil/piertotum/internal/state"
)

// RegisteredMessage is the wire shape of a single queued message, as
// returned by Read.
type RegisteredMessage struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	FromName  string            `json:"fromName"`
	Content   string            `json:"content"`
	Type      state.MessageType `json:"type"`
	Timestamp string            `json:"timestamp"`
	Read      bool              `json:"read"`
}

// Register calls POST /agents/register.
func (c *Client) Register(ctx context.Context, agentID, name, project, path string) (int, *Error) {
	var resp struct {
		TotalAgents int `json:"totalAgents"`
	}
	err := c.call(ctx, http.MethodPost, "/agents/register", map[string]string{
		"agentId": agentID,
		"name":    name,
		"project": project,
		"path":    path,
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.TotalAgents, nil
}

// Heartbeat calls POST /agents/{id}/heartbeat.
func (c *Client) Heartbeat(ctx context.Context, agentID string) *Error {
	return c.call(ctx, http.MethodPost, "/agents/"+agentID+"/heartbeat", nil, nil)
}

// Deregister calls DELETE /agents/{id}.
func (c *Client) Deregister(ctx context.Context, agentID string) *Error {
	return c.call(ctx, http.MethodDelete, "/agents/"+agentID, nil, nil)
}

// Send calls POST /messages/send and returns the generated message id.
func (c *Client) Send(ctx context.Context, from, to, content, msgType string) (string, *Error) {
	var resp struct {
		MessageID string `json:"messageId"`
	}
	err := c.call(ctx, http.MethodPost, "/messages/send", map[string]string{
		"from":    from,
		"to":      to,
		"content": content,
		"type":    msgType,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// Read calls GET /messages/{id}?unread=bool&limit=N.
func (c *Client) Read(ctx context.Context, agentID string, unreadOnly bool, limit int) ([]RegisteredMessage, bool, *Error) {
	path := "/messages/" + agentID + "?limit=" + strconv.Itoa(limit)
	if unreadOnly {
		path += "&unread=true"
	}

	var resp struct {
		Messages []RegisteredMessage `json:"messages"`
		HasMore  bool                `json:"hasMore"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, false, err
	}
	return resp.Messages, resp.HasMore, nil
}

// Ack calls POST /messages/{id}/ack.
func (c *Client) Ack(ctx context.Context, agentID string, messageIDs []string) (int, *Error) {
	var resp struct {
		Acked int `json:"acked"`
	}
	err := c.call(ctx, http.MethodPost, "/messages/"+agentID+"/ack", map[string]any{
		"ids": messageIDs,
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Acked, nil
}

// SetContext calls POST /context.
func (c *Client) SetContext(ctx context.Context, key, value, setBy string) *Error {
	return c.call(ctx, http.MethodPost, "/context", map[string]string{
		"key":   key,
		"value": value,
		"setBy": setBy,
	}, nil)
}
