package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	secretsmanageriface.SecretsManagerAPI
	values map[string]string
	calls  int
}

func (f *fakeSecrets) GetSecretValueWithContext(_ aws.Context, in *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[aws.StringValue(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTSecretPlainAndJSON(t *testing.T) {
	loader := NewSecretLoaderWithClient(&fakeSecrets{values: map[string]string{
		"plain": testSecret,
		"doc":   `{"jwt_secret":"` + testSecret + `"}`,
		"short": "tiny",
	}})
	ctx := context.Background()

	s, err := loader.JWTSecret(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, testSecret, s)

	s, err = loader.JWTSecret(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, testSecret, s)

	_, err = loader.JWTSecret(ctx, "short")
	assert.Error(t, err)
}

func TestResolveJWTSecret(t *testing.T) {
	fake := &fakeSecrets{values: map[string]string{"prod/jwt": testSecret}}
	loader := NewSecretLoaderWithClient(fake)

	cfg := &Config{JWT: JWTConfig{Secret: "from-env"}}
	require.NoError(t, ResolveJWTSecret(context.Background(), cfg, loader))
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 0, fake.calls)

	cfg.JWT.SecretID = "prod/jwt"
	require.NoError(t, ResolveJWTSecret(context.Background(), cfg, loader))
	assert.Equal(t, testSecret, cfg.JWT.Secret)
}

func TestJWTSecretBreakerOpens(t *testing.T) {
	fake := &fakeSecrets{values: map[string]string{}}
	loader := NewSecretLoaderWithClient(fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := loader.JWTSecret(ctx, "missing")
		assert.Error(t, err)
	}
	_, err := loader.JWTSecret(ctx, "missing")
	assert.Error(t, err)
	assert.Equal(t, 3, fake.calls)
}
