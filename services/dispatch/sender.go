package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sendpool/services/store"
)

//go:generate mockgen -source=sender.go -destination=mock_sender.go -package=dispatch

const (
	DriverGateway   = "gateway"
	DriverWhatsmeow = "whatsmeow"
)

// ErrNoMessageID is returned when the channel accepted the request but did
// not say which message it created. Such a send cannot be settled later.
var ErrNoMessageID = errors.New("sender returned no message id")

// Message is one outbound message, already rendered from a template.
type Message struct {
	// ID is the reserved message id. Empty when the channel picks one.
	ID string
	// Session names the sender's channel session on the gateway.
	Session string
	// From is the sender's own phone number; whatsmeow picks the device by it.
	From     string
	To       string
	Type     store.MessageType
	Text     string
	Header   string
	Footer   string
	ImageURL string
	Buttons  []Button
}

type Button struct {
	ID          string `json:"id,omitempty"`
	DisplayText string `json:"displayText,omitempty"`
	Text        string `json:"text,omitempty"`
}

func (b Button) Label() string {
	switch {
	case b.DisplayText != "":
		return b.DisplayText
	case b.Text != "":
		return b.Text
	default:
		return b.ID
	}
}

func (m Message) JID() string {
	return m.To + "@s.whatsapp.net"
}

type Sender interface {
	// Send delivers the message and returns the channel's message id.
	Send(ctx context.Context, msg Message) (string, error)
	Driver() string
}

// IDReserver is implemented by senders that can name a message before it is
// sent. The id is stored on the target first, so a receipt that arrives
// before Send returns still finds it.
type IDReserver interface {
	ReserveMessageID(from string) (string, error)
}

// SessionName is the gateway session of an account. Accounts without an
// explicit session use the per-user default.
func SessionName(account *store.Account) string {
	if account.SessionID != "" {
		return account.SessionID
	}
	return fmt.Sprintf("user-%d", account.ID)
}

// BuildMessage renders tpl for target, sent from account.
func BuildMessage(account *store.Account, target *store.Target, tpl *store.MessageTemplate) (Message, error) {
	msg := Message{
		Session:  SessionName(account),
		From:     account.PhoneNumber,
		To:       strings.TrimPrefix(strings.TrimSpace(target.Phone), "+"),
		Type:     tpl.MessageType,
		Text:     tpl.Body,
		Header:   tpl.Header,
		Footer:   tpl.Footer,
		ImageURL: tpl.ImageURL,
	}

	if tpl.MessageType == store.MessageTypeButton && len(tpl.ButtonJSON) > 0 {
		if err := json.Unmarshal(tpl.ButtonJSON, &msg.Buttons); err != nil {
			return Message{}, fmt.Errorf("template %d has malformed buttons: %w", tpl.ID, err)
		}
	}

	return msg, nil
}
