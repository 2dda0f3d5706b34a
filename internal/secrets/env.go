package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// EnvProvider resolves secrets from the process environment, optionally
// seeded from a .env file. Secret names are mapped to env keys by
// upper-casing and replacing dashes: "binance-api-key" -> "BINANCE_API_KEY".
type EnvProvider struct {
	logger *zap.Logger
}

var _ Provider = (*EnvProvider)(nil)

// NewEnvProvider creates an EnvProvider. A missing .env file is not an
// error; explicitly exported variables are enough.
func NewEnvProvider(logger *zap.Logger) *EnvProvider {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}
	return &EnvProvider{logger: logger}
}

// EnvKey returns the environment variable name a secret name maps to.
func EnvKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// GetSecret looks the secret up in the environment.
func (p *EnvProvider) GetSecret(name string) (string, error) {
	key := EnvKey(name)
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", fmt.Errorf("%s (env %s): %w", name, key, ErrSecretNotFound)
	}
	return value, nil
}
