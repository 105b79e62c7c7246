package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mikey/complaint-router/internal/config"
	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

// Marker is the header line stamped into every forwarded body so the
// false-positive feedback loop can recognize bounced-back complaints
const Marker = "X-Complaint-Router: processed; id=%s;"

// MarkerRe extracts the original message identifier from a forwarded body
var MarkerRe = regexp.MustCompile(`X-Complaint-Router: processed; id=([^;]+);`)

const messageSelect = "id,subject,body,from,toRecipients,receivedDateTime"

// Client talks to the Microsoft Graph mail API. It implements both
// ports.MailProvider and ports.FeedbackSource.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a Graph client authenticating with the client
// credentials grant
func NewClient(cfg config.GraphConfig, logger *zap.Logger) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	httpClient := cc.Client(context.Background())
	// oauth2 builds a client with no timeout; a stuck request must not hang
	// the sync or feedback schedules.
	httpClient.Timeout = cfg.RequestTimeout
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}
}

// NewClientWithHTTP creates a Graph client over an existing HTTP client.
// Used by tests against a stub server.
func NewClientWithHTTP(httpClient *http.Client, baseURL string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	ID               string         `json:"id"`
	Subject          string         `json:"subject"`
	ReceivedDateTime time.Time      `json:"receivedDateTime"`
	From             graphAddress   `json:"from"`
	ToRecipients     []graphAddress `json:"toRecipients"`
	Body             struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

type listResponse struct {
	Value     []graphMessage `json:"value"`
	NextLink  string         `json:"@odata.nextLink"`
	DeltaLink string         `json:"@odata.deltaLink"`
}

// ListMessages fetches new messages for a mailbox. With a cursor token it
// resumes the delta stream; otherwise it starts a fresh delta sequence
// bounded by the configured filter window. The returned cursor is the
// provider's deltaLink, opaque to callers.
func (c *Client) ListMessages(ctx context.Context, mailbox string, cursor *core.SyncCursor, filter ports.ListFilter) (*ports.ListResult, error) {
	next := c.deltaURL(mailbox, cursor, filter)

	result := &ports.ListResult{}
	var latest time.Time

	for next != "" {
		var page listResponse
		if err := c.get(ctx, "list messages", next, &page); err != nil {
			return nil, err
		}

		for i := range page.Value {
			gm := &page.Value[i]
			msg := &core.Message{
				ID:         gm.ID,
				Mailbox:    mailbox,
				From:       gm.From.EmailAddress.Address,
				Subject:    gm.Subject,
				Body:       gm.Body.Content,
				ReceivedAt: gm.ReceivedDateTime,
				Metadata:   map[string]string{"contentType": gm.Body.ContentType},
			}
			for _, to := range gm.ToRecipients {
				msg.To = append(msg.To, to.EmailAddress.Address)
			}
			result.Messages = append(result.Messages, msg)
			if gm.ReceivedDateTime.After(latest) {
				latest = gm.ReceivedDateTime
			}
		}

		if page.NextLink != "" {
			next = page.NextLink
			continue
		}
		if page.DeltaLink != "" {
			if latest.IsZero() {
				latest = time.Now()
			}
			result.Cursor = &core.SyncCursor{
				Mailbox:      mailbox,
				Token:        page.DeltaLink,
				LastSyncedAt: latest,
			}
		}
		next = ""
	}

	return result, nil
}

// deltaURL builds the first request URL: the persisted deltaLink when one is
// available, otherwise a fresh delta query bounded by the filter window
func (c *Client) deltaURL(mailbox string, cursor *core.SyncCursor, filter ports.ListFilter) string {
	if cursor != nil && cursor.Token != "" {
		return cursor.Token
	}

	params := url.Values{}
	params.Set("$select", messageSelect)
	if filter.Top > 0 {
		params.Set("$top", fmt.Sprintf("%d", filter.Top))
	}

	var parts []string
	if !filter.StartDate.IsZero() {
		parts = append(parts, fmt.Sprintf("receivedDateTime ge %s", filter.StartDate.Format(time.RFC3339)))
	}
	if filter.FromDomain != "" {
		parts = append(parts, fmt.Sprintf("from/emailAddress/address eq '%s'", filter.FromDomain))
	}
	if filter.SubjectContains != "" {
		parts = append(parts, fmt.Sprintf("contains(subject,'%s')", filter.SubjectContains))
	}
	if len(parts) > 0 {
		params.Set("$filter", strings.Join(parts, " and "))
	}

	return fmt.Sprintf("%s/users/%s/mailFolders/Inbox/messages/delta?%s",
		c.baseURL, url.PathEscape(mailbox), params.Encode())
}

// RecentMessages lists messages received since the given time, for the
// feedback loops
func (c *Client) RecentMessages(ctx context.Context, mailbox string, since time.Time, top int) ([]*core.Message, error) {
	params := url.Values{}
	params.Set("$select", messageSelect)
	params.Set("$filter", fmt.Sprintf("receivedDateTime ge %s", since.Format(time.RFC3339)))
	if top > 0 {
		params.Set("$top", fmt.Sprintf("%d", top))
	}

	reqURL := fmt.Sprintf("%s/users/%s/mailFolders/Inbox/messages?%s",
		c.baseURL, url.PathEscape(mailbox), params.Encode())

	var page listResponse
	if err := c.get(ctx, "list recent messages", reqURL, &page); err != nil {
		return nil, err
	}

	messages := make([]*core.Message, 0, len(page.Value))
	for i := range page.Value {
		gm := &page.Value[i]
		msg := &core.Message{
			ID:         gm.ID,
			Mailbox:    mailbox,
			From:       gm.From.EmailAddress.Address,
			Subject:    gm.Subject,
			Body:       gm.Body.Content,
			ReceivedAt: gm.ReceivedDateTime,
		}
		for _, to := range gm.ToRecipients {
			msg.To = append(msg.To, to.EmailAddress.Address)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Forward sends a copy of the message to the distribution address, stamping
// the marker line into the body so returned copies are recognizable
func (c *Client) Forward(ctx context.Context, mailbox, messageID, distribution string) error {
	getURL := fmt.Sprintf("%s/users/%s/messages/%s", c.baseURL, url.PathEscape(mailbox), url.PathEscape(messageID))

	var original graphMessage
	if err := c.get(ctx, "get message", getURL, &original); err != nil {
		return err
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"subject": "FW: " + original.Subject,
			"toRecipients": []map[string]interface{}{
				{"emailAddress": map[string]string{"address": distribution}},
			},
			"body": map[string]string{
				"contentType": original.Body.ContentType,
				"content":     fmt.Sprintf(Marker, messageID) + "\n" + original.Body.Content,
			},
		},
		"saveToSentItems": false,
	}

	sendURL := fmt.Sprintf("%s/users/%s/sendMail", c.baseURL, url.PathEscape(mailbox))
	if err := c.post(ctx, "forward message", sendURL, payload); err != nil {
		return err
	}

	c.logger.Info("Message forwarded to distribution list",
		zap.String("message_id", messageID),
		zap.String("mailbox", mailbox),
		zap.String("distribution", distribution))
	return nil
}

// Delete removes the original message from the mailbox
func (c *Client) Delete(ctx context.Context, mailbox, messageID string) error {
	delURL := fmt.Sprintf("%s/users/%s/messages/%s", c.baseURL, url.PathEscape(mailbox), url.PathEscape(messageID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, delURL, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.TransientProviderError{Op: "delete message", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError("delete message", resp)
	}

	c.logger.Info("Original message deleted",
		zap.String("message_id", messageID),
		zap.String("mailbox", mailbox))
	return nil
}

func (c *Client) get(ctx context.Context, op, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.TransientProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, reqURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.TransientProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(op, resp)
	}
	return nil
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError maps Graph failures into the error taxonomy: an expired sync
// state is ErrCursorExpired, throttling and server faults are transient,
// everything else is permanent
func (c *Client) statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var ge graphError
	_ = json.Unmarshal(raw, &ge)
	code := ge.Error.Code

	if resp.StatusCode == http.StatusGone ||
		strings.EqualFold(code, "syncStateNotFound") ||
		strings.EqualFold(code, "resyncRequired") {
		return fmt.Errorf("%s: %s: %w", op, code, core.ErrCursorExpired)
	}

	err := fmt.Errorf("%s: status %d: %s %s", op, resp.StatusCode, code, ge.Error.Message)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &core.TransientProviderError{Op: op, Err: err}
	}
	return err
}

var (
	_ ports.MailProvider   = (*Client)(nil)
	_ ports.FeedbackSource = (*Client)(nil)
)
