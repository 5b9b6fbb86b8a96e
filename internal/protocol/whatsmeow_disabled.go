//go:build !whatsmeow

package protocol

import (
	"errors"
	"log/slog"
)

func newWhatsmeowClient(_ string, _ *slog.Logger) (Client, error) {
	return nil, errors.New("whatsmeow transport is not enabled in this build")
}
