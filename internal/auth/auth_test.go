package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, SchemeBcrypt, s)

	s, err = ParseScheme("PLAIN")
	require.NoError(t, err)
	assert.Equal(t, SchemePlain, s)

	_, err = ParseScheme("md5")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestBcryptRoundTrip(t *testing.T) {
	stored, err := NewHasher(SchemeBcrypt).WithCost(bcrypt.MinCost).Hash("secret1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "bcrypt$"))
	assert.NotContains(t, stored, "secret1")

	assert.NoError(t, Verify(stored, "secret1"))
	assert.ErrorIs(t, Verify(stored, "secret2"), ErrMismatch)
}

func TestPlainRoundTrip(t *testing.T) {
	stored, err := NewHasher(SchemePlain).Hash("secret1")
	require.NoError(t, err)
	assert.Equal(t, "plain$secret1", stored)

	assert.NoError(t, Verify(stored, "secret1"))
	assert.ErrorIs(t, Verify(stored, "Secret1"), ErrMismatch)
}

func TestVerifyAcceptsEitherSchemeRegardlessOfHasher(t *testing.T) {
	assert.NoError(t, Verify("plain$a$b", "a$b"))
	assert.ErrorIs(t, Verify("nodollar", "x"), ErrUnknownScheme)
	assert.ErrorIs(t, Verify("sha1$abc", "x"), ErrUnknownScheme)
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
