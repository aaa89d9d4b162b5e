package settlement

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Notification is one message status update.
type Notification struct {
	MessageID string
	// Status is whatever the channel sent: a number, a numeric string or a
	// status name.
	Status any
}

type rawUpdate struct {
	Key *struct {
		ID string `json:"id"`
	} `json:"key"`
	MessageID string `json:"messageId"`
	Update    *struct {
		Status any `json:"status"`
	} `json:"update"`
	Status any `json:"status"`
}

func (u rawUpdate) notification() Notification {
	n := Notification{MessageID: u.MessageID, Status: u.Status}
	if u.Key != nil && u.Key.ID != "" {
		n.MessageID = u.Key.ID
	}
	if u.Update != nil && u.Update.Status != nil {
		n.Status = u.Update.Status
	}
	return n
}

var errMalformed = errors.New("malformed notification payload")

// Parse accepts a single update object, an array of them, or an object with
// an "updates" array. Updates without a message id are dropped.
func Parse(raw []byte) ([]Notification, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errMalformed
	}

	var updates []rawUpdate
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &updates); err != nil {
			return nil, errors.Join(errMalformed, err)
		}
	case '{':
		var envelope struct {
			Updates json.RawMessage `json:"updates"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, errors.Join(errMalformed, err)
		}
		if len(envelope.Updates) > 0 && envelope.Updates[0] == '[' {
			if err := json.Unmarshal(envelope.Updates, &updates); err != nil {
				return nil, errors.Join(errMalformed, err)
			}
			break
		}
		var single rawUpdate
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, errors.Join(errMalformed, err)
		}
		updates = []rawUpdate{single}
	default:
		return nil, errMalformed
	}

	out := make([]Notification, 0, len(updates))
	for _, u := range updates {
		n := u.notification()
		if n.MessageID == "" {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// IsDelivered reports whether status means the message reached the
// recipient's device. Numeric codes of 2 and above count, as do integer
// strings of them and the DELIVERY_ACK, delivered and read names.
func IsDelivered(status any) bool {
	switch v := status.(type) {
	case float64:
		return v >= 2
	case int:
		return v >= 2
	case int64:
		return v >= 2
	case json.Number:
		n, err := v.Int64()
		return err == nil && n >= 2
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n >= 2
		}
		switch s {
		case "DELIVERY_ACK", "delivered", "read":
			return true
		}
	}
	return false
}
