package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAdminToken_RoundTrip(t *testing.T) {
	token, err := NewAdminToken(testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NoError(t, ValidateAdminToken(token, testSecret))
}

func TestValidateAdminToken_WrongSecret(t *testing.T) {
	token, err := NewAdminToken(testSecret, time.Hour)
	require.NoError(t, err)

	assert.Error(t, ValidateAdminToken(token, "other-secret"))
}

func TestValidateAdminToken_Expired(t *testing.T) {
	token, err := NewAdminToken(testSecret, -time.Minute)
	require.NoError(t, err)

	assert.Error(t, ValidateAdminToken(token, testSecret))
}

func TestValidateAdminToken_Garbage(t *testing.T) {
	assert.Error(t, ValidateAdminToken("not.a.token", testSecret))
	assert.Error(t, ValidateAdminToken("", testSecret))
}
