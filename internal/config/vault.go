package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

// ErrSecretNotFound is returned when the configured Vault path holds no data.
var ErrSecretNotFound = errors.New("secret not found")

// Secret keys read from Vault.
const (
	SecretAPIKey    = "api_key"
	SecretAPIKeyID  = "api_key_id"
	SecretServerURL = "server_url"
)

// ResolveCredentials fills cfg.API from the Vault secret when Vault is
// configured. Values found in Vault take precedence over file and
// environment values.
func ResolveCredentials(ctx context.Context, cfg *Config) error {
	if !cfg.Vault.Enabled() {
		return nil
	}
	vcfg := vaultapi.DefaultConfig()
	vcfg.Address = cfg.Vault.Address
	vcfg.Timeout = GetEnvDuration("XDR_VAULT_TIMEOUT", 10*time.Second)
	client, err := vaultapi.NewClient(vcfg)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Vault.Token != "" {
		client.SetToken(cfg.Vault.Token)
	}

	mount := cfg.Vault.Mount
	if mount == "" {
		mount = "secret"
	}
	secret, err := client.KVv2(mount).Get(ctx, cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s/%s from vault: %w", mount, cfg.Vault.Path, err)
	}
	if secret == nil || secret.Data == nil {
		return fmt.Errorf("%w at %s/%s", ErrSecretNotFound, mount, cfg.Vault.Path)
	}

	set := func(dst *string, key string) {
		if v, ok := secret.Data[key].(string); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.API.Key, SecretAPIKey)
	set(&cfg.API.KeyID, SecretAPIKeyID)
	set(&cfg.API.ServerURL, SecretServerURL)
	return nil
}
