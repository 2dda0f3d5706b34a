package secrets

import (
	"fmt"
	"net/http"

	"dca-trade-bot-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// KeyVaultClient retrieves secrets from an Azure Key Vault instance over its
// REST API using a pre-acquired bearer token.
type KeyVaultClient struct {
	client     *resty.Client
	apiVersion string
	logger     *zap.Logger
}

var _ Provider = (*KeyVaultClient)(nil)

// secretResponse is the Key Vault GET secret payload. Only the value is used.
type secretResponse struct {
	Value string `json:"value"`
	ID    string `json:"id"`
}

type vaultError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewKeyVaultClient creates a Key Vault secrets client for the vault
// configured in cfg. The token is expected to carry the
// https://vault.azure.net scope.
func NewKeyVaultClient(cfg *config.Vault, logger *zap.Logger) *KeyVaultClient {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetAuthToken(cfg.Token).
		SetRetryCount(2)

	return &KeyVaultClient{
		client:     client,
		apiVersion: cfg.APIVersion,
		logger:     logger,
	}
}

// GetSecret fetches the current version of a named secret from the vault.
func (c *KeyVaultClient) GetSecret(name string) (string, error) {
	var result secretResponse
	var vaultErr vaultError

	resp, err := c.client.R().
		SetResult(&result).
		SetError(&vaultErr).
		SetQueryParam("api-version", c.apiVersion).
		SetPathParam("name", name).
		Get("/secrets/{name}")
	if err != nil {
		return "", fmt.Errorf("failed to reach key vault: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return result.Value, nil
	case http.StatusNotFound:
		return "", fmt.Errorf("%s: %w", name, ErrSecretNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.Error("Key vault rejected credentials",
			zap.String("secret", name),
			zap.String("code", vaultErr.Error.Code))
		return "", fmt.Errorf("%s: %w", name, ErrAuth)
	default:
		return "", fmt.Errorf("key vault request for %s failed with status %s: %s",
			name, resp.Status(), vaultErr.Error.Message)
	}
}
