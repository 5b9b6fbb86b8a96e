// Package session supervises the protocol client across authentication,
// readiness, disconnection and recovery. The transition logic is a pure
// reducer over an immutable snapshot; the manager owns the I/O side
// (client handles, recovery timers, credential purge).
package session

import (
	"time"

	"chat-gateway/backend/internal/protocol"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateAwaitingQR    State = "awaiting_qr"
	StateAuthenticated State = "authenticated"
	StateReady         State = "ready"
	StateDisconnected  State = "disconnected"
)

// Snapshot is the externally observable session state. Value semantics:
// Apply never mutates its input.
type Snapshot struct {
	State         State
	Authenticated bool
	Ready         bool
	QR            string
	LastReason    protocol.DisconnectReason
}

type EffectKind int

const (
	// EffectNone requires no recovery action.
	EffectNone EffectKind = iota
	// EffectRebuild tears the current client down and constructs a fresh
	// instance after Delay. Purge indicates the credential store must be
	// wiped first so the new instance does not try to resume a dead session.
	EffectRebuild
	// EffectReinit re-initializes the existing client instance after Delay.
	EffectReinit
)

type Effect struct {
	Kind  EffectKind
	Purge bool
	Delay time.Duration
}

// Delays holds the recovery scheduling constants. Configurable so tests can
// shrink them; production runs use the defaults.
type Delays struct {
	Rebuild time.Duration // after logout, fresh client
	Reinit  time.Duration // after transient disconnect, same client
	Restart time.Duration // after manual restart
}

func DefaultDelays() Delays {
	return Delays{
		Rebuild: 3 * time.Second,
		Reinit:  5 * time.Second,
		Restart: 2 * time.Second,
	}
}

func (d Delays) normalized() Delays {
	def := DefaultDelays()
	if d.Rebuild <= 0 {
		d.Rebuild = def.Rebuild
	}
	if d.Reinit <= 0 {
		d.Reinit = def.Reinit
	}
	if d.Restart <= 0 {
		d.Restart = def.Restart
	}
	return d
}

// Apply computes the next snapshot and the recovery effect for one protocol
// event. Disconnect handling branches on reason:
//
//	logout               credentials are dead; purge, then rebuild fresh
//	navigation/conflict  no auto-recovery, operator must restart
//	anything else        transient; reinitialize the same instance
func Apply(snap Snapshot, ev protocol.Event, delays Delays) (Snapshot, Effect) {
	delays = delays.normalized()

	switch ev.Type {
	case protocol.EventQR:
		snap.QR = ev.QR
		if !snap.Ready {
			snap.State = StateAwaitingQR
		}
		return snap, Effect{}

	case protocol.EventAuthenticated:
		snap.Authenticated = true
		if !snap.Ready {
			snap.State = StateAuthenticated
		}
		return snap, Effect{}

	case protocol.EventAuthFailure:
		snap.Authenticated = false
		snap.Ready = false
		snap.State = StateAwaitingQR
		return snap, Effect{}

	case protocol.EventReady:
		snap.Authenticated = true
		snap.Ready = true
		snap.QR = ""
		snap.State = StateReady
		return snap, Effect{}

	case protocol.EventDisconnected:
		snap.Authenticated = false
		snap.Ready = false
		snap.State = StateDisconnected
		snap.LastReason = ev.Reason
		switch ev.Reason {
		case protocol.ReasonLogout:
			snap.QR = ""
			return snap, Effect{Kind: EffectRebuild, Purge: true, Delay: delays.Rebuild}
		case protocol.ReasonNavigation, protocol.ReasonConflict:
			return snap, Effect{}
		default:
			return snap, Effect{Kind: EffectReinit, Delay: delays.Reinit}
		}

	default:
		// EventError and unknown types leave the snapshot untouched; the
		// manager logs them.
		return snap, Effect{}
	}
}
