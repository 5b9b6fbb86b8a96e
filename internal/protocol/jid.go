package protocol

import (
	"errors"
	"strings"
)

const (
	UserServer  = "s.whatsapp.net"
	GroupServer = "g.us"
)

var (
	ErrEmptyNumber = errors.New("number contains no digits")
	ErrInvalidJID  = errors.New("jid is malformed")
)

// NormalizeNumber strips everything that is not a digit. "+1 (555) 123-4567"
// becomes "15551234567". A result without any digit is an error, not a
// degenerate address.
func NormalizeNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyNumber
	}
	return b.String(), nil
}

// NumberToJID turns a normalized number into a user JID.
func NumberToJID(number string) string {
	return number + "@" + UserServer
}

// ValidateJID accepts user and group JIDs in user@server form.
func ValidateJID(jid string) error {
	user, server, ok := strings.Cut(jid, "@")
	if !ok || user == "" || server == "" {
		return ErrInvalidJID
	}
	return nil
}

// JIDUser returns the user part of a JID, or the input unchanged when it
// carries no server suffix. Used as the protocol-user-id match field during
// contact resolution.
func JIDUser(jid string) string {
	user, _, ok := strings.Cut(jid, "@")
	if !ok {
		return jid
	}
	return user
}

// IsGroupJID reports whether the JID addresses a group conversation.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@"+GroupServer)
}
