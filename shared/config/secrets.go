package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
	"github.com/sirupsen/logrus"
)

// SecretLoader fetches signing material from AWS Secrets Manager
type SecretLoader struct {
	client  secretsmanageriface.SecretsManagerAPI
	breaker *utils.CircuitBreaker
}

// NewSecretLoader creates a loader backed by a real Secrets Manager client
func NewSecretLoader(region string) (*SecretLoader, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewSecretLoaderWithClient(secretsmanager.New(sess)), nil
}

// NewSecretLoaderWithClient wraps an existing Secrets Manager client
func NewSecretLoaderWithClient(client secretsmanageriface.SecretsManagerAPI) *SecretLoader {
	return &SecretLoader{
		client:  client,
		breaker: utils.NewCircuitBreaker("secretsmanager", 3, 30*time.Second),
	}
}

// JWTSecret returns the secret stored under secretID. The secret may be a
// plain string or a JSON object with a "jwt_secret" key.
func (l *SecretLoader) JWTSecret(ctx context.Context, secretID string) (string, error) {
	var out *secretsmanager.GetSecretValueOutput
	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to load secret %s: %w", secretID, err)
	}

	raw := strings.TrimSpace(aws.StringValue(out.SecretString))
	if strings.HasPrefix(raw, "{") {
		var doc struct {
			JWTSecret string `json:"jwt_secret"`
		}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return "", fmt.Errorf("failed to parse secret %s: %w", secretID, err)
		}
		raw = doc.JWTSecret
	}
	if len(raw) < 32 {
		return "", fmt.Errorf("secret %s must be at least 32 bytes", secretID)
	}

	logrus.WithField("secret_id", secretID).Info("Loaded JWT secret from Secrets Manager")
	return raw, nil
}

// ResolveJWTSecret fills cfg.JWT.Secret from Secrets Manager when a
// secret id is configured.
func ResolveJWTSecret(ctx context.Context, cfg *Config, loader *SecretLoader) error {
	if cfg.JWT.SecretID == "" {
		return nil
	}
	secret, err := loader.JWTSecret(ctx, cfg.JWT.SecretID)
	if err != nil {
		return err
	}
	cfg.JWT.Secret = secret
	return nil
}
