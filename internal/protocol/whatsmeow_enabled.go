//go:build whatsmeow

package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// whatsmeowClient adapts a whatsmeow connection to the Client surface. One
// instance corresponds to one connection attempt; the session manager builds
// a fresh one whenever the disconnect policy calls for a rebuilt handle.
type whatsmeowClient struct {
	dbPath string
	logger *slog.Logger

	handlerMu sync.Mutex
	handler   func(Event)

	mu        sync.Mutex
	container *sqlstore.Container
	client    *whatsmeow.Client
	handlerID uint32
}

func newWhatsmeowClient(dbPath string, logger *slog.Logger) (Client, error) {
	if dbPath == "" {
		return nil, errors.New("credential database path is required")
	}
	return &whatsmeowClient{dbPath: dbPath, logger: logger}, nil
}

func (w *whatsmeowClient) Subscribe(handler func(Event)) {
	w.handlerMu.Lock()
	w.handler = handler
	w.handlerMu.Unlock()
}

func (w *whatsmeowClient) Unsubscribe() {
	w.handlerMu.Lock()
	w.handler = nil
	w.handlerMu.Unlock()
}

func (w *whatsmeowClient) emit(ev Event) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	if w.handler != nil {
		w.handler(ev)
	}
}

func (w *whatsmeowClient) Initialize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.client != nil {
		// Reinitialize path after a transient disconnect: reconnect the
		// existing connection state instead of rebuilding it.
		return w.client.Connect()
	}

	container, err := sqlstore.New("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", w.dbPath), waLog.Noop)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	device, err := container.GetFirstDevice()
	if err != nil {
		container.Close()
		return fmt.Errorf("load device: %w", err)
	}
	client := whatsmeow.NewClient(device, waLog.Noop)
	handlerID := client.AddEventHandler(w.translate)
	if err := client.Connect(); err != nil {
		client.RemoveEventHandler(handlerID)
		container.Close()
		return fmt.Errorf("connect: %w", err)
	}

	w.container = container
	w.client = client
	w.handlerID = handlerID
	return nil
}

func (w *whatsmeowClient) Destroy(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.RemoveEventHandler(w.handlerID)
		w.client.Disconnect()
		w.client = nil
	}
	if w.container != nil {
		w.container.Close()
		w.container = nil
	}
	return nil
}

// translate maps whatsmeow's event taxonomy onto the gateway's lifecycle
// events. Stream replacement (another session took the connection) and
// logout are distinguished because their recovery policies differ.
func (w *whatsmeowClient) translate(raw interface{}) {
	switch evt := raw.(type) {
	case *events.QR:
		if len(evt.Codes) > 0 {
			w.emit(Event{Type: EventQR, QR: evt.Codes[0]})
		}
	case *events.PairSuccess:
		w.emit(Event{Type: EventAuthenticated})
	case *events.PairError:
		w.emit(Event{Type: EventAuthFailure})
	case *events.Connected:
		w.emit(Event{Type: EventAuthenticated})
		w.emit(Event{Type: EventReady})
	case *events.LoggedOut:
		w.emit(Event{Type: EventDisconnected, Reason: ReasonLogout})
	case *events.StreamReplaced:
		w.emit(Event{Type: EventDisconnected, Reason: ReasonConflict})
	case *events.TemporaryBan:
		w.emit(Event{Type: EventDisconnected, Reason: ReasonNavigation})
	case *events.Disconnected:
		w.emit(Event{Type: EventDisconnected, Reason: ReasonTransient})
	case *events.ConnectFailure:
		w.emit(Event{Type: EventError, Err: fmt.Errorf("connect failure: %s", evt.Reason)})
	case *events.ClientOutdated:
		w.emit(Event{Type: EventError, Err: errors.New("protocol client build is outdated")})
	}
}

func (w *whatsmeowClient) SendMessage(ctx context.Context, jid, text string) error {
	w.mu.Lock()
	client := w.client
	w.mu.Unlock()
	if client == nil {
		return errors.New("whatsmeow client is not initialized")
	}
	target, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("parse jid: %w", err)
	}
	_, err = client.SendMessage(ctx, target, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

func (w *whatsmeowClient) Contacts(_ context.Context) ([]Contact, error) {
	w.mu.Lock()
	client := w.client
	w.mu.Unlock()
	if client == nil {
		return nil, errors.New("whatsmeow client is not initialized")
	}
	all, err := client.Store.Contacts.GetAllContacts()
	if err != nil {
		return nil, err
	}
	out := make([]Contact, 0, len(all))
	for jid, info := range all {
		out = append(out, Contact{
			JID:         jid.String(),
			Number:      jid.User,
			DisplayName: info.FullName,
			PushName:    info.PushName,
			ShortName:   info.FirstName,
			IsKnown:     info.FullName != "" || info.FirstName != "",
			IsOnNetwork: info.Found,
			IsGroup:     jid.Server == types.GroupServer,
		})
	}
	return out, nil
}
