package secrets

import "errors"

// Well-known secret names resolved at startup.
const (
	NameBinanceAPIKey    = "binance-api-key"
	NameBinanceAPISecret = "binance-api-secret"
	NameSMTPPassword     = "smtp-password"
)

var (
	// ErrSecretNotFound is returned when the named secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrAuth is returned when the vault rejects the caller's identity.
	ErrAuth = errors.New("vault authentication failed")
)

// Provider retrieves named credentials from a secrets backend.
type Provider interface {
	GetSecret(name string) (string, error)
}
