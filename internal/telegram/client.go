// Package telegram adapts the Bot API for the defender: a retrying
// HTTP client, a long poller for local runs, and a webhook router for
// server runs. The client doubles as the platform capability layer,
// providing handle resolution, member exclusion, and admin
// notification to the rest of the system.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const defaultBaseURL = "https://api.telegram.org"

// leveledSlog adapts slog for retryablehttp. Intermediate retry
// failures are logged at WARN rather than ERROR.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Warn(msg string, keysAndValues ...any)  { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Info(msg string, keysAndValues ...any)  { l.inner.Info(msg, keysAndValues...) }
func (l leveledSlog) Debug(msg string, keysAndValues ...any) { l.inner.Debug(msg, keysAndValues...) }

// Client calls the Bot API. Transport-level failures and 5xx responses
// are retried with backoff before surfacing; Bot API errors come back
// as *APIError.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	admins  []int64
	logger  *slog.Logger
}

// ClientOption tunes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the Bot API endpoint, for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAdmins sets the accounts NotifyAdmins delivers to.
func WithAdmins(ids []int64) ClientOption {
	return func(c *Client) {
		c.admins = ids
	}
}

// NewClient builds a Client around a retrying HTTP client. The long
// timeout leaves room for GetUpdates long polls.
func NewClient(token string, logger *slog.Logger, opts ...ClientOption) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{logger})
	httpClient := retryClient.StandardClient()
	httpClient.Timeout = 60 * time.Second

	c := &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    httpClient,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call invokes one Bot API method with a JSON body and decodes the
// result envelope into out (which may be nil).
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Description: envelope.Description}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetChat fetches a chat or account by ID or @handle.
func (c *Client) GetChat(ctx context.Context, ref string) (Chat, error) {
	var chat Chat
	err := c.call(ctx, "getChat", map[string]any{"chat_id": ref}, &chat)
	return chat, err
}

// GetChatMember fetches an account's standing in a chat.
func (c *Client) GetChatMember(ctx context.Context, chatID, accountID int64) (ChatMember, error) {
	var member ChatMember
	err := c.call(ctx, "getChatMember",
		map[string]any{"chat_id": chatID, "user_id": accountID}, &member)
	return member, err
}

// BanChatMember removes the account from the chat and keeps it out.
func (c *Client) BanChatMember(ctx context.Context, chatID, accountID int64) error {
	return c.call(ctx, "banChatMember",
		map[string]any{"chat_id": chatID, "user_id": accountID}, nil)
}

// SendMessage posts text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage",
		map[string]any{"chat_id": chatID, "text": text}, nil)
}

// GetUpdates long-polls for new updates past offset. timeout is the
// server-side hold in seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message", "chat_member"},
	}, &updates)
	return updates, err
}

// SetWebhook points the Bot API at url with the shared secret token.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	return c.call(ctx, "setWebhook", map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message", "chat_member"},
	}, nil)
}

// DeleteWebhook detaches the webhook so long polling can take over.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)
}

// ResolveHandle resolves a public @handle to its account ID via
// getChat. Handles without a public chat come back as *APIError
// unwrapping to not found.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (int64, error) {
	chat, err := c.GetChat(ctx, "@"+handle)
	if err != nil {
		return 0, err
	}
	return chat.ID, nil
}

// Exclude bans the account from the chat. A nil return means the
// account is out, whether this call removed it or it was already gone.
func (c *Client) Exclude(ctx context.Context, chatID, accountID int64) error {
	return c.BanChatMember(ctx, chatID, accountID)
}

// NotifyAdmins sends text to every configured admin. Delivery is best
// effort per admin; the last failure is returned.
func (c *Client) NotifyAdmins(ctx context.Context, text string) error {
	var lastErr error
	for _, adminID := range c.admins {
		if err := c.SendMessage(ctx, adminID, text); err != nil {
			c.logger.WarnContext(ctx, "admin notify failed", "admin_id", adminID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
