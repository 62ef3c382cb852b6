// Package secrets loads process secrets from HashiCorp Vault.
package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// VaultClient reads KVv2 secrets.
type VaultClient struct {
	client    *vault.Client
	mountPath string
	log       logger.Logger
}

// NewVaultClient creates and configures a new Vault client.
func NewVaultClient(cfg *config.VaultConfig, log logger.Logger) (*VaultClient, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	return &VaultClient{client: client, mountPath: mount, log: log}, nil
}

// GetString reads one string field of a KVv2 secret.
func (v *VaultClient) GetString(ctx context.Context, path, key string) (string, error) {
	secret, err := v.client.KVv2(v.mountPath).Get(ctx, path)
	if err != nil {
		return "", errors.ErrServiceUnavailable.WithError(err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.ErrResourceNotFound("vault secret " + path)
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", errors.ErrResourceNotFound(fmt.Sprintf("vault secret field %s/%s", path, key))
	}
	return value, nil
}

// ResolveSessionSecret returns the configured session secret, reading it
// from Vault when Vault is enabled. Vault wins over the static value.
func ResolveSessionSecret(ctx context.Context, cfg *config.Config, log logger.Logger) (string, error) {
	if !cfg.Vault.Enabled() {
		return cfg.Session.Secret, nil
	}

	client, err := NewVaultClient(&cfg.Vault, log)
	if err != nil {
		return "", err
	}

	secret, err := client.GetString(ctx, cfg.Vault.SecretPath, cfg.Vault.SecretKey)
	if err != nil {
		log.Error(ctx, "Failed to read session secret from Vault", err, logger.String("path", cfg.Vault.SecretPath))
		return "", err
	}

	log.Info(ctx, "Session secret loaded from Vault", logger.String("path", cfg.Vault.SecretPath))
	return secret, nil
}
