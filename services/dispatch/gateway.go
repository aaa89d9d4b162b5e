package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"sendpool/services/store"
)

// GatewaySender talks to an HTTP WhatsApp gateway that hosts one session per
// account.
type GatewaySender struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewGatewaySender(baseURL, apiKey string, client *http.Client) *GatewaySender {
	if client == nil {
		client = http.DefaultClient
	}
	return &GatewaySender{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: client,
	}
}

func (g *GatewaySender) Driver() string { return DriverGateway }

type gatewayText struct {
	Text    string        `json:"text,omitempty"`
	Image   *gatewayImage `json:"image,omitempty"`
	Caption string        `json:"caption,omitempty"`
}

type gatewayImage struct {
	URL string `json:"url"`
}

type sendMessageRequest struct {
	JID     string      `json:"jid"`
	Message gatewayText `json:"message"`
}

type sendButtonRequest struct {
	JID     string   `json:"jid"`
	Text    string   `json:"text"`
	Header  string   `json:"header"`
	Footer  string   `json:"footer"`
	Buttons []Button `json:"buttons"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	Response  struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	} `json:"response"`
}

func (g *GatewaySender) Send(ctx context.Context, msg Message) (string, error) {
	var (
		endpoint string
		body     any
	)
	if msg.Type == store.MessageTypeButton {
		endpoint = "send-button"
		buttons := msg.Buttons
		if buttons == nil {
			buttons = []Button{}
		}
		body = sendButtonRequest{
			JID:     msg.JID(),
			Text:    msg.Text,
			Header:  msg.Header,
			Footer:  msg.Footer,
			Buttons: buttons,
		}
	} else {
		endpoint = "send-message"
		content := gatewayText{Text: msg.Text}
		if msg.ImageURL != "" {
			content = gatewayText{Image: &gatewayImage{URL: msg.ImageURL}, Caption: msg.Text}
		}
		body = sendMessageRequest{JID: msg.JID(), Message: content}
	}

	respBody, err := g.doRequest(ctx, fmt.Sprintf("/api/sessions/%s/%s", url.PathEscape(msg.Session), endpoint), body)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}

	id := resp.MessageID
	if id == "" {
		id = resp.Response.Key.ID
	}
	if id == "" {
		return "", ErrNoMessageID
	}
	return id, nil
}

func (g *GatewaySender) doRequest(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("X-API-Key", g.APIKey)
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway error: %s (status: %d)", strings.TrimSpace(string(respBody)), resp.StatusCode)
	}

	return respBody, nil
}
