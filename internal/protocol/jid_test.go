package protocol

import (
	"errors"
	"testing"
)

func TestNormalizeNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "15551234567"},
		{"15551234567", "15551234567"},
		{"  555.123.4567 ext 9", "55512345679"},
	}
	for _, tc := range cases {
		got, err := NormalizeNumber(tc.in)
		if err != nil {
			t.Fatalf("NormalizeNumber(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeNumberRejectsDigitless(t *testing.T) {
	for _, in := range []string{"", "   ", "+-()", "abc"} {
		if _, err := NormalizeNumber(in); !errors.Is(err, ErrEmptyNumber) {
			t.Fatalf("NormalizeNumber(%q) must fail with ErrEmptyNumber, got %v", in, err)
		}
	}
}

func TestNumberToJID(t *testing.T) {
	if got := NumberToJID("15551234567"); got != "15551234567@s.whatsapp.net" {
		t.Fatalf("unexpected jid %q", got)
	}
}

func TestValidateJID(t *testing.T) {
	for _, jid := range []string{"15551234567@s.whatsapp.net", "123456789@g.us"} {
		if err := ValidateJID(jid); err != nil {
			t.Fatalf("ValidateJID(%q) failed: %v", jid, err)
		}
	}
	for _, jid := range []string{"", "no-at-sign", "@s.whatsapp.net", "user@"} {
		if err := ValidateJID(jid); !errors.Is(err, ErrInvalidJID) {
			t.Fatalf("ValidateJID(%q) must fail, got %v", jid, err)
		}
	}
}

func TestJIDUser(t *testing.T) {
	if got := JIDUser("15551234567@s.whatsapp.net"); got != "15551234567" {
		t.Fatalf("unexpected user part %q", got)
	}
	if got := JIDUser("bare"); got != "bare" {
		t.Fatalf("input without server must pass through, got %q", got)
	}
}

func TestIsGroupJID(t *testing.T) {
	if !IsGroupJID("123456789@g.us") {
		t.Fatal("group jid not recognized")
	}
	if IsGroupJID("15551234567@s.whatsapp.net") {
		t.Fatal("user jid misclassified as group")
	}
}
