package session

import (
	"testing"
	"time"

	"chat-gateway/backend/internal/protocol"
)

func TestApplyQRStoresPayload(t *testing.T) {
	snap, effect := Apply(Snapshot{State: StateUninitialized}, protocol.Event{Type: protocol.EventQR, QR: "payload-1"}, Delays{})
	if snap.State != StateAwaitingQR {
		t.Fatalf("expected awaiting_qr, got %s", snap.State)
	}
	if snap.QR != "payload-1" {
		t.Fatalf("expected stored QR payload, got %q", snap.QR)
	}
	if effect.Kind != EffectNone {
		t.Fatalf("qr event must not schedule recovery")
	}

	snap, _ = Apply(snap, protocol.Event{Type: protocol.EventQR, QR: "payload-2"}, Delays{})
	if snap.QR != "payload-2" {
		t.Fatalf("newer QR must supersede the old one, got %q", snap.QR)
	}
}

func TestApplyReadyClearsQR(t *testing.T) {
	snap := Snapshot{State: StateAwaitingQR, QR: "payload"}
	snap, effect := Apply(snap, protocol.Event{Type: protocol.EventReady}, Delays{})
	if !snap.Ready || !snap.Authenticated {
		t.Fatalf("ready event must mark ready and authenticated, got %+v", snap)
	}
	if snap.QR != "" {
		t.Fatalf("readiness must clear the stored QR, got %q", snap.QR)
	}
	if snap.State != StateReady {
		t.Fatalf("expected ready state, got %s", snap.State)
	}
	if effect.Kind != EffectNone {
		t.Fatalf("ready event must not schedule recovery")
	}
}

func TestApplyAuthFailureReturnsToAwaitingQR(t *testing.T) {
	snap := Snapshot{State: StateAuthenticated, Authenticated: true}
	snap, _ = Apply(snap, protocol.Event{Type: protocol.EventAuthFailure}, Delays{})
	if snap.Authenticated {
		t.Fatal("auth failure must clear the authenticated flag")
	}
	if snap.State != StateAwaitingQR {
		t.Fatalf("expected awaiting_qr after auth failure, got %s", snap.State)
	}
}

func TestApplyDisconnectPolicy(t *testing.T) {
	delays := Delays{Rebuild: 3 * time.Second, Reinit: 5 * time.Second, Restart: 2 * time.Second}
	ready := Snapshot{State: StateReady, Ready: true, Authenticated: true, QR: ""}

	cases := []struct {
		name      string
		reason    protocol.DisconnectReason
		wantKind  EffectKind
		wantPurge bool
		wantDelay time.Duration
	}{
		{"logout purges and rebuilds", protocol.ReasonLogout, EffectRebuild, true, delays.Rebuild},
		{"navigation requires operator restart", protocol.ReasonNavigation, EffectNone, false, 0},
		{"conflict requires operator restart", protocol.ReasonConflict, EffectNone, false, 0},
		{"transient reinitializes in place", protocol.ReasonTransient, EffectReinit, false, delays.Reinit},
		{"unknown reason treated as transient", protocol.DisconnectReason("weird"), EffectReinit, false, delays.Reinit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, effect := Apply(ready, protocol.Event{Type: protocol.EventDisconnected, Reason: tc.reason}, delays)
			if snap.State != StateDisconnected {
				t.Fatalf("expected disconnected state, got %s", snap.State)
			}
			if snap.Ready || snap.Authenticated {
				t.Fatalf("disconnect must clear readiness flags, got %+v", snap)
			}
			if effect.Kind != tc.wantKind {
				t.Fatalf("expected effect kind %v, got %v", tc.wantKind, effect.Kind)
			}
			if effect.Purge != tc.wantPurge {
				t.Fatalf("expected purge=%v, got %v", tc.wantPurge, effect.Purge)
			}
			if effect.Delay != tc.wantDelay {
				t.Fatalf("expected delay %s, got %s", tc.wantDelay, effect.Delay)
			}
		})
	}
}

func TestApplyLogoutClearsQR(t *testing.T) {
	snap := Snapshot{State: StateAwaitingQR, QR: "payload"}
	snap, _ = Apply(snap, protocol.Event{Type: protocol.EventDisconnected, Reason: protocol.ReasonLogout}, Delays{})
	if snap.QR != "" {
		t.Fatalf("logout must clear the stored QR, got %q", snap.QR)
	}
}

func TestApplyErrorLeavesSnapshotUntouched(t *testing.T) {
	before := Snapshot{State: StateReady, Ready: true, Authenticated: true}
	after, effect := Apply(before, protocol.Event{Type: protocol.EventError}, Delays{})
	if after != before {
		t.Fatalf("error event must not mutate the snapshot: %+v != %+v", after, before)
	}
	if effect.Kind != EffectNone {
		t.Fatal("error event must not schedule recovery")
	}
}

func TestDelaysNormalization(t *testing.T) {
	d := Delays{}.normalized()
	def := DefaultDelays()
	if d != def {
		t.Fatalf("zero delays must normalize to defaults, got %+v", d)
	}
	custom := Delays{Rebuild: time.Second, Reinit: 2 * time.Second, Restart: 500 * time.Millisecond}
	if got := custom.normalized(); got != custom {
		t.Fatalf("positive delays must pass through, got %+v", got)
	}
}
