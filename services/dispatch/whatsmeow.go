package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"sendpool/services/store"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite"
)

const maxImageBytes = 16 << 20

// ReceiptFunc receives delivery receipts encoded as a notification batch.
type ReceiptFunc func(ctx context.Context, source string, raw []byte) error

// WhatsmeowSender runs the paired multi-device sessions in process. Devices
// are keyed by their own phone number, which is the account's phone_number.
type WhatsmeowSender struct {
	container *sqlstore.Container
	log       waLog.Logger
	http      *http.Client

	mu        sync.RWMutex
	clients   map[string]*whatsmeow.Client
	onReceipt ReceiptFunc
}

func NewWhatsmeowSender(ctx context.Context, storePath string) (*WhatsmeowSender, error) {
	log := newZapWaLog(zap.L().Named("whatsmeow"))
	container, err := sqlstore.New(ctx, "sqlite", "file:"+storePath+"?_pragma=foreign_keys(1)", log.Sub("Database"))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	return &WhatsmeowSender{
		container: container,
		log:       log,
		http:      http.DefaultClient,
		clients:   map[string]*whatsmeow.Client{},
	}, nil
}

func (w *WhatsmeowSender) Driver() string { return DriverWhatsmeow }

// OnReceipt registers where delivery and read receipts go.
func (w *WhatsmeowSender) OnReceipt(fn ReceiptFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReceipt = fn
}

// Start connects every paired device in the store. Unpaired devices are
// skipped; pairing happens out of band.
func (w *WhatsmeowSender) Start(ctx context.Context) error {
	devices, err := w.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}

	for _, device := range devices {
		if device.ID == nil {
			continue
		}
		client := whatsmeow.NewClient(device, w.log.Sub("Client"))
		client.AddEventHandler(w.handleEvent)
		if err := client.Connect(); err != nil {
			zap.L().Error("failed to connect whatsmeow device", zap.String("device", device.ID.User), zap.Error(err))
			continue
		}

		w.mu.Lock()
		w.clients[device.ID.User] = client
		w.mu.Unlock()
	}

	zap.L().Info("whatsmeow sessions connected", zap.Int("devices", len(w.clients)))
	return nil
}

func (w *WhatsmeowSender) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for phone, client := range w.clients {
		client.Disconnect()
		delete(w.clients, phone)
	}
}

func (w *WhatsmeowSender) client(from string) (*whatsmeow.Client, error) {
	w.mu.RLock()
	client, ok := w.clients[from]
	w.mu.RUnlock()
	if !ok || !client.IsConnected() {
		return nil, fmt.Errorf("no connected session for %s", from)
	}
	return client, nil
}

// ReserveMessageID picks the id the next message from this device will use.
func (w *WhatsmeowSender) ReserveMessageID(from string) (string, error) {
	client, err := w.client(from)
	if err != nil {
		return "", err
	}
	return string(client.GenerateMessageID()), nil
}

func (w *WhatsmeowSender) Send(ctx context.Context, msg Message) (string, error) {
	client, err := w.client(msg.From)
	if err != nil {
		return "", err
	}

	to, err := types.ParseJID(msg.JID())
	if err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	content, err := w.render(ctx, client, msg)
	if err != nil {
		return "", err
	}

	var extra []whatsmeow.SendRequestExtra
	if msg.ID != "" {
		extra = append(extra, whatsmeow.SendRequestExtra{ID: types.MessageID(msg.ID)})
	}
	resp, err := client.SendMessage(ctx, to, content, extra...)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", ErrNoMessageID
	}
	return string(resp.ID), nil
}

func (w *WhatsmeowSender) render(ctx context.Context, client *whatsmeow.Client, msg Message) (*waE2E.Message, error) {
	switch {
	case msg.Type == store.MessageTypeButton:
		return &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String(ButtonText(msg))},
		}, nil
	case msg.ImageURL != "":
		data, err := w.download(ctx, msg.ImageURL)
		if err != nil {
			return nil, err
		}
		up, err := client.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		return &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{
				Caption:       proto.String(msg.Text),
				Mimetype:      proto.String(http.DetectContentType(data)),
				URL:           proto.String(up.URL),
				DirectPath:    proto.String(up.DirectPath),
				MediaKey:      up.MediaKey,
				FileEncSHA256: up.FileEncSHA256,
				FileSHA256:    up.FileSHA256,
				FileLength:    proto.Uint64(up.FileLength),
			},
		}, nil
	default:
		return &waE2E.Message{Conversation: proto.String(msg.Text)}, nil
	}
}

func (w *WhatsmeowSender) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, errors.New("image too large")
	}
	return data, nil
}

// ButtonText flattens a button template into plain text. Multi-device
// clients no longer render interactive buttons from personal accounts.
func ButtonText(msg Message) string {
	var b strings.Builder
	if msg.Header != "" {
		b.WriteString("*" + msg.Header + "*\n\n")
	}
	b.WriteString(msg.Text)
	for i, btn := range msg.Buttons {
		if i == 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Label())
	}
	if msg.Footer != "" {
		b.WriteString("\n\n_" + msg.Footer + "_")
	}
	return b.String()
}

type receiptNotification struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

func receiptStatus(t types.ReceiptType) string {
	switch t {
	case types.ReceiptTypeDelivered:
		return "delivered"
	case types.ReceiptTypeRead, types.ReceiptTypePlayed:
		return "read"
	default:
		return ""
	}
}

func (w *WhatsmeowSender) handleEvent(evt any) {
	receipt, ok := evt.(*events.Receipt)
	if !ok || receipt.IsFromMe {
		return
	}
	status := receiptStatus(receipt.Type)
	if status == "" {
		return
	}

	w.mu.RLock()
	fn := w.onReceipt
	w.mu.RUnlock()
	if fn == nil {
		return
	}

	batch := make([]receiptNotification, 0, len(receipt.MessageIDs))
	for _, id := range receipt.MessageIDs {
		batch = append(batch, receiptNotification{MessageID: string(id), Status: status})
	}
	raw, err := json.Marshal(batch)
	if err != nil {
		return
	}

	go func() {
		if err := fn(context.Background(), DriverWhatsmeow, raw); err != nil {
			zap.L().Error("failed to handle whatsmeow receipt", zap.Error(err))
		}
	}()
}

// zapWaLog routes whatsmeow's logger into zap.
type zapWaLog struct {
	s *zap.SugaredLogger
}

func newZapWaLog(l *zap.Logger) waLog.Logger {
	return zapWaLog{s: l.Sugar()}
}

func (z zapWaLog) Warnf(msg string, args ...interface{})  { z.s.Warnf(msg, args...) }
func (z zapWaLog) Errorf(msg string, args ...interface{}) { z.s.Errorf(msg, args...) }
func (z zapWaLog) Infof(msg string, args ...interface{})  { z.s.Infof(msg, args...) }
func (z zapWaLog) Debugf(msg string, args ...interface{}) { z.s.Debugf(msg, args...) }
func (z zapWaLog) Sub(module string) waLog.Logger {
	return zapWaLog{s: z.s.Named(module)}
}
