package authenticating

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/ozon-performance-sync/internal/config"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
)

func testConfig(secret string) *config.Config {
	return &config.Config{
		Auth: config.Auth{Secret: secret},
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	service := NewService(testConfig("test-secret"))

	token, err := service.GenerateToken("grafana")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "grafana", claims.ServiceName)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewService(testConfig("secret-a"))
	verifier := NewService(testConfig("secret-b"))

	token, err := issuer.GenerateToken("grafana")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	service := NewService(testConfig("test-secret"))

	claims := &domain.Claims{
		ServiceName: "grafana",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = service.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	service := NewService(testConfig("test-secret"))

	_, err := service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
