package securestore

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	plaintext := []byte(`{"state":"ready"}`)
	sealed, err := Seal("passphrase", plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("sealed output leaks the plaintext")
	}
	if !bytes.HasPrefix(sealed, []byte(filePrefix)) {
		t.Fatal("sealed output misses the magic prefix")
	}

	opened, err := Open("passphrase", sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: %q", opened)
	}
}

func TestOpenRejectsWrongPassphrase(t *testing.T) {
	sealed, err := Seal("correct", []byte("payload"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := Open("wrong", sealed); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestOpenRejectsUnsealedData(t *testing.T) {
	if _, err := Open("pass", []byte(`{"plain":"json"}`)); !errors.Is(err, ErrPlaintext) {
		t.Fatalf("expected ErrPlaintext, got %v", err)
	}
	if _, err := Open("pass", []byte(filePrefix+"not json")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

type statePayload struct {
	State string `json:"state"`
}

func TestWriteReadJSONWithPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	if err := WriteJSON(path, "pass", statePayload{State: "ready"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var got statePayload
	if err := ReadJSON(path, "pass", &got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.State != "ready" {
		t.Fatalf("unexpected payload: %+v", got)
	}

	// A sealed file must not open without the passphrase.
	if err := ReadJSON(path, "", &got); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed without passphrase, got %v", err)
	}
}

func TestWriteReadJSONPlaintextPassthrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := WriteJSON(path, "", statePayload{State: "disconnected"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var got statePayload
	if err := ReadJSON(path, "", &got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.State != "disconnected" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}
