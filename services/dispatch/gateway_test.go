package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"sendpool/services/store"

	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Path   string
	APIKey string
	Body   map[string]any
}

func gatewayServer(t *testing.T, status int, response string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Path = r.URL.Path
		got.APIKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&got.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGatewaySendText(t *testing.T) {
	var got capturedRequest
	srv := gatewayServer(t, http.StatusOK, `{"messageId":"3EB0ABC"}`, &got)

	g := NewGatewaySender(srv.URL+"/", "secret", srv.Client())
	id, err := g.Send(context.Background(), Message{
		Session: "user-7",
		To:      "628111",
		Type:    store.MessageTypeText,
		Text:    "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "3EB0ABC", id)
	require.Equal(t, "/api/sessions/user-7/send-message", got.Path)
	require.Equal(t, "secret", got.APIKey)
	require.Equal(t, "628111@s.whatsapp.net", got.Body["jid"])
	require.Equal(t, map[string]any{"text": "hi"}, got.Body["message"])
}

func TestGatewaySendImageUsesNestedKey(t *testing.T) {
	var got capturedRequest
	srv := gatewayServer(t, http.StatusOK, `{"response":{"key":{"id":"KEY1"}}}`, &got)

	g := NewGatewaySender(srv.URL, "", srv.Client())
	id, err := g.Send(context.Background(), Message{
		Session:  "s1",
		To:       "628111",
		Type:     store.MessageTypeText,
		Text:     "caption",
		ImageURL: "https://cdn.example.test/a.png",
	})
	require.NoError(t, err)
	require.Equal(t, "KEY1", id)
	require.Empty(t, got.APIKey)
	require.Equal(t, map[string]any{
		"image":   map[string]any{"url": "https://cdn.example.test/a.png"},
		"caption": "caption",
	}, got.Body["message"])
}

func TestGatewaySendButton(t *testing.T) {
	var got capturedRequest
	srv := gatewayServer(t, http.StatusOK, `{"messageId":"B1"}`, &got)

	g := NewGatewaySender(srv.URL, "", srv.Client())
	_, err := g.Send(context.Background(), Message{
		Session: "s1",
		To:      "628111",
		Type:    store.MessageTypeButton,
		Text:    "pick one",
		Header:  "Promo",
		Buttons: []Button{{ID: "yes", DisplayText: "Yes"}},
	})
	require.NoError(t, err)
	require.Equal(t, "/api/sessions/s1/send-button", got.Path)
	require.Equal(t, "pick one", got.Body["text"])
	require.Equal(t, "Promo", got.Body["header"])
	require.Equal(t, "", got.Body["footer"])
	require.Len(t, got.Body["buttons"], 1)
}

func TestGatewaySendErrors(t *testing.T) {
	var got capturedRequest
	srv := gatewayServer(t, http.StatusBadGateway, `session offline`, &got)
	g := NewGatewaySender(srv.URL, "", srv.Client())
	_, err := g.Send(context.Background(), Message{Session: "s1", To: "1", Text: "x"})
	require.ErrorContains(t, err, "status: 502")

	srv = gatewayServer(t, http.StatusOK, `{}`, &got)
	g = NewGatewaySender(srv.URL, "", srv.Client())
	_, err = g.Send(context.Background(), Message{Session: "s1", To: "1", Text: "x"})
	require.True(t, errors.Is(err, ErrNoMessageID))
}

func TestBuildMessage(t *testing.T) {
	account := &store.Account{ID: 42, PhoneNumber: "62800"}
	target := &store.Target{Phone: " +628123 "}
	tpl := &store.MessageTemplate{
		MessageType: store.MessageTypeButton,
		Body:        "body",
		ButtonJSON:  []byte(`[{"id":"a","text":"Alpha"}]`),
	}

	msg, err := BuildMessage(account, target, tpl)
	require.NoError(t, err)
	require.Equal(t, "user-42", msg.Session)
	require.Equal(t, "628123", msg.To)
	require.Equal(t, "62800", msg.From)
	require.Equal(t, "Alpha", msg.Buttons[0].Label())

	tpl.ButtonJSON = []byte(`{`)
	_, err = BuildMessage(account, target, tpl)
	require.Error(t, err)
}

func TestButtonText(t *testing.T) {
	text := ButtonText(Message{
		Header:  "Promo",
		Text:    "Choose",
		Footer:  "reply with a number",
		Buttons: []Button{{DisplayText: "Yes"}, {ID: "no"}},
	})
	require.Equal(t, "*Promo*\n\nChoose\n\n1. Yes\n2. no\n\n_reply with a number_", text)
}
