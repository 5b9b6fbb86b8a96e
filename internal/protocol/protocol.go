// Package protocol defines the boundary to the external messaging-network
// client. The gateway never looks past this surface: it consumes the event
// stream and the send/query calls, nothing else.
package protocol

import "context"

const (
	TransportMock      = "mock"
	TransportWhatsmeow = "whatsmeow"
)

type EventType string

const (
	EventQR            EventType = "qr"
	EventAuthenticated EventType = "authenticated"
	EventAuthFailure   EventType = "auth_failure"
	EventReady         EventType = "ready"
	EventDisconnected  EventType = "disconnected"
	EventError         EventType = "error"
)

type DisconnectReason string

const (
	ReasonLogout     DisconnectReason = "logout"
	ReasonNavigation DisconnectReason = "navigation"
	ReasonConflict   DisconnectReason = "conflict"
	ReasonTransient  DisconnectReason = "transient"
)

// Event is one lifecycle notification from the protocol client. QR is set
// only for EventQR, Reason only for EventDisconnected, Err only for
// EventError.
type Event struct {
	Type   EventType
	QR     string
	Reason DisconnectReason
	Err    error
}

// Contact is the protocol client's view of one directory entry. Fetched
// per-request and never cached by the gateway.
type Contact struct {
	JID         string `json:"jid"`
	Number      string `json:"number"`
	DisplayName string `json:"display_name"`
	PushName    string `json:"push_name"`
	ShortName   string `json:"short_name"`
	IsKnown     bool   `json:"is_known"`
	IsOnNetwork bool   `json:"is_on_network"`
	IsGroup     bool   `json:"is_group"`
}

// Client is one live connection attempt against the messaging account.
// Subscribe must be called before Initialize; Unsubscribe must detach the
// handler synchronously so no event is delivered after it returns.
type Client interface {
	Subscribe(handler func(Event))
	Unsubscribe()
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
	SendMessage(ctx context.Context, jid, text string) error
	Contacts(ctx context.Context) ([]Contact, error)
}

// Factory builds a fresh Client instance. The session manager calls it once
// at init and again whenever the disconnect policy demands a rebuilt handle.
type Factory func() (Client, error)
