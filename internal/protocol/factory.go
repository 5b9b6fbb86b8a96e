package protocol

import "log/slog"

// NewFactory returns the client constructor for the configured transport.
// The mock transport auto-pairs so a local gateway becomes ready without a
// phone in the loop; the whatsmeow transport requires the build tag of the
// same name.
func NewFactory(transport, credentialDBPath string, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	switch transport {
	case TransportWhatsmeow:
		return func() (Client, error) {
			return newWhatsmeowClient(credentialDBPath, logger)
		}
	default:
		return func() (Client, error) {
			c := NewMockClient(DemoDirectory())
			c.AutoPair = true
			return c, nil
		}
	}
}
