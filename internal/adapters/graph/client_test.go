package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClientWithHTTP(server.Client(), server.URL, zap.NewNop()), server
}

func messageJSON(id, subject, from, body string, received time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":               id,
		"subject":          subject,
		"receivedDateTime": received.Format(time.RFC3339),
		"from": map[string]interface{}{
			"emailAddress": map[string]string{"address": from},
		},
		"toRecipients": []map[string]interface{}{
			{"emailAddress": map[string]string{"address": "support@example.com"}},
		},
		"body": map[string]string{"contentType": "text", "content": body},
	}
}

func TestListMessagesWalksDeltaPages(t *testing.T) {
	received := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/users/support@example.com/mailFolders/Inbox/messages/delta", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value":            []interface{}{messageJSON("m2", "s2", "b@example.com", "late", received.Add(time.Hour))},
				"@odata.deltaLink": server.URL + "/delta-token-next",
			})
			return
		}
		// First page carries a nextLink the client must follow
		assert.Contains(t, r.URL.Query().Get("$select"), "id,subject")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value":           []interface{}{messageJSON("m1", "s1", "a@example.com", "early", received)},
			"@odata.nextLink": server.URL + "/users/support@example.com/mailFolders/Inbox/messages/delta?page=2",
		})
	})

	client, srv := newTestClient(t, mux)
	server = srv

	result, err := client.ListMessages(context.Background(), "support@example.com", nil, ports.ListFilter{Top: 10})
	require.NoError(t, err)

	require.Len(t, result.Messages, 2)
	assert.Equal(t, "m1", result.Messages[0].ID)
	assert.Equal(t, "a@example.com", result.Messages[0].From)
	assert.Equal(t, []string{"support@example.com"}, result.Messages[0].To)
	assert.Equal(t, "m2", result.Messages[1].ID)

	require.NotNil(t, result.Cursor)
	assert.Equal(t, server.URL+"/delta-token-next", result.Cursor.Token)
	assert.True(t, result.Cursor.LastSyncedAt.Equal(received.Add(time.Hour)))
}

func TestListMessagesResumesFromCursorToken(t *testing.T) {
	var requested string
	var server *httptest.Server
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value":            []interface{}{},
			"@odata.deltaLink": server.URL + "/next",
		})
	})

	client, srv := newTestClient(t, handler)
	server = srv

	cursor := &core.SyncCursor{Mailbox: "support@example.com", Token: server.URL + "/resume-here"}
	result, err := client.ListMessages(context.Background(), "support@example.com", cursor, ports.ListFilter{})
	require.NoError(t, err)

	assert.Equal(t, "/resume-here", requested)
	assert.Empty(t, result.Messages)
	require.NotNil(t, result.Cursor)
	assert.Equal(t, server.URL+"/next", result.Cursor.Token)
}

func TestListMessagesFilterQuery(t *testing.T) {
	var filter string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter = r.URL.Query().Get("$filter")
		json.NewEncoder(w).Encode(map[string]interface{}{"value": []interface{}{}})
	})

	client, _ := newTestClient(t, handler)

	_, err := client.ListMessages(context.Background(), "support@example.com", nil, ports.ListFilter{
		StartDate:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		FromDomain:      "customer@example.com",
		SubjectContains: "outage",
	})
	require.NoError(t, err)

	assert.Contains(t, filter, "receivedDateTime ge 2025-06-01T00:00:00Z")
	assert.Contains(t, filter, "from/emailAddress/address eq 'customer@example.com'")
	assert.Contains(t, filter, "contains(subject,'outage')")
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		code          string
		wantExpired   bool
		wantTransient bool
	}{
		{name: "410 gone means expired cursor", status: http.StatusGone, wantExpired: true},
		{name: "syncStateNotFound means expired cursor", status: http.StatusBadRequest, code: "syncStateNotFound", wantExpired: true},
		{name: "resyncRequired means expired cursor", status: http.StatusBadRequest, code: "resyncRequired", wantExpired: true},
		{name: "429 is transient", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "503 is transient", status: http.StatusServiceUnavailable, wantTransient: true},
		{name: "403 is permanent", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprintf(w, `{"error": {"code": %q, "message": "boom"}}`, tt.code)
			})
			client, _ := newTestClient(t, handler)

			_, err := client.ListMessages(context.Background(), "support@example.com", nil, ports.ListFilter{})
			require.Error(t, err)
			assert.Equal(t, tt.wantExpired, errors.Is(err, core.ErrCursorExpired))
			assert.Equal(t, tt.wantTransient, core.IsTransient(err))
		})
	}
}

func TestForwardStampsMarker(t *testing.T) {
	var sent map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/users/support@example.com/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messageJSON("m1", "big outage", "customer@example.com", "everything is down", time.Now()))
	})
	mux.HandleFunc("/users/support@example.com/sendMail", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.WriteHeader(http.StatusAccepted)
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.Forward(context.Background(), "support@example.com", "m1", "complaints@example.com"))

	require.NotNil(t, sent)
	msg := sent["message"].(map[string]interface{})
	assert.Equal(t, "FW: big outage", msg["subject"])
	assert.Equal(t, false, sent["saveToSentItems"])

	body := msg["body"].(map[string]interface{})["content"].(string)
	assert.True(t, strings.HasPrefix(body, fmt.Sprintf(Marker, "m1")))
	assert.Contains(t, body, "everything is down")

	// The stamped marker is recoverable by the feedback loop's pattern
	m := MarkerRe.FindStringSubmatch(body)
	require.Len(t, m, 2)
	assert.Equal(t, "m1", m[1])

	recipients := msg["toRecipients"].([]interface{})
	require.Len(t, recipients, 1)
	address := recipients[0].(map[string]interface{})["emailAddress"].(map[string]interface{})["address"]
	assert.Equal(t, "complaints@example.com", address)
}

func TestDelete(t *testing.T) {
	var method, path string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	client, _ := newTestClient(t, handler)
	require.NoError(t, client.Delete(context.Background(), "support@example.com", "m1"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/users/support@example.com/messages/m1", path)
}

func TestRecentMessages(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var query string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("$filter")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []interface{}{messageJSON("m1", "s1", "a@example.com", "body", since.Add(time.Hour))},
		})
	})

	client, _ := newTestClient(t, handler)
	messages, err := client.RecentMessages(context.Background(), "complaints@example.com", since, 25)
	require.NoError(t, err)

	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "complaints@example.com", messages[0].Mailbox)
	assert.Contains(t, query, "receivedDateTime ge 2025-06-01T00:00:00Z")
}
