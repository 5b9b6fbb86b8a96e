package protocol

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// MockClient is the in-process transport used by tests and by local runs
// without the whatsmeow build tag. Initialize emits a QR payload and, when
// AutoPair is set, walks the session through authenticated and ready the way
// a scanned login would.
type MockClient struct {
	handlerMu sync.Mutex
	handler   func(Event)

	mu        sync.Mutex
	running   bool
	directory []Contact

	AutoPair      bool
	AutoPairDelay time.Duration
	SendErr       error
	ContactsErr   error
}

func NewMockClient(directory []Contact) *MockClient {
	return &MockClient{
		directory:     append([]Contact(nil), directory...),
		AutoPairDelay: 50 * time.Millisecond,
	}
}

func (m *MockClient) Subscribe(handler func(Event)) {
	m.handlerMu.Lock()
	m.handler = handler
	m.handlerMu.Unlock()
}

// Unsubscribe detaches the handler and waits for any in-flight delivery, so
// no event observably arrives after it returns.
func (m *MockClient) Unsubscribe() {
	m.handlerMu.Lock()
	m.handler = nil
	m.handlerMu.Unlock()
}

// Emit delivers one event to the subscribed handler, if any. Exposed so
// tests can script lifecycle sequences.
func (m *MockClient) Emit(ev Event) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	if m.handler != nil {
		m.handler(ev)
	}
}

// Initialize starts (or restarts) the scripted connection. Calling it on a
// client that is already running models an in-place reconnect and emits a
// fresh QR payload.
func (m *MockClient) Initialize(_ context.Context) error {
	m.mu.Lock()
	m.running = true
	autoPair := m.AutoPair
	delay := m.AutoPairDelay
	m.mu.Unlock()

	m.Emit(Event{Type: EventQR, QR: "mock-qr-" + randomToken()})
	if autoPair {
		go func() {
			time.Sleep(delay)
			m.Emit(Event{Type: EventAuthenticated})
			m.Emit(Event{Type: EventReady})
		}()
	}
	return nil
}

func (m *MockClient) Destroy(_ context.Context) error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

func (m *MockClient) SendMessage(_ context.Context, jid, text string) error {
	if err := ValidateJID(jid); err != nil {
		return err
	}
	if text == "" {
		return errors.New("empty message")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	if !m.running {
		return errors.New("mock client is not initialized")
	}
	return nil
}

func (m *MockClient) Contacts(_ context.Context) ([]Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ContactsErr != nil {
		return nil, m.ContactsErr
	}
	return append([]Contact(nil), m.directory...), nil
}

// SetDirectory replaces the scripted contact set.
func (m *MockClient) SetDirectory(directory []Contact) {
	m.mu.Lock()
	m.directory = append([]Contact(nil), directory...)
	m.mu.Unlock()
}

func randomToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "static"
	}
	return hex.EncodeToString(buf)
}

// DemoDirectory is the contact set served by the mock transport when the
// gateway runs without a real protocol backend.
func DemoDirectory() []Contact {
	return []Contact{
		{JID: "15551234567@" + UserServer, Number: "15551234567", DisplayName: "John Smith", PushName: "john", ShortName: "John", IsKnown: true, IsOnNetwork: true},
		{JID: "15557654321@" + UserServer, Number: "15557654321", DisplayName: "Johnny Appleseed", PushName: "johnny", IsKnown: true, IsOnNetwork: true},
		{JID: "15550001111@" + UserServer, Number: "15550001111", DisplayName: "Ada Lovelace", PushName: "ada", ShortName: "Ada", IsKnown: true, IsOnNetwork: true},
		{JID: "123456789@" + GroupServer, Number: "", DisplayName: "Weekend Plans", IsGroup: true, IsOnNetwork: true},
	}
}
