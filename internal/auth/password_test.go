package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()

	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	return h
}

func TestNewPasswordHasher_RejectsCostOutOfRange(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MinCost - 1)
	assert.Error(t, err)

	_, err = NewPasswordHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	for _, p := range []string{"admin123", "p", "correct horse battery staple", "пароль"} {
		hash, err := h.Hash(p)
		require.NoError(t, err)

		assert.NotEqual(t, p, hash)
		assert.True(t, h.Verify(p, hash), "password %q should verify", p)
		assert.False(t, h.Verify(p+"x", hash))
	}
}

func TestPasswordHasher_SaltedOutput(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_MalformedHashIsMismatch(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	assert.False(t, h.Verify("admin123", ""))
	assert.False(t, h.Verify("admin123", "not-a-hash"))
	assert.False(t, h.Verify("admin123", "$2a$10$short"))
}

func TestPasswordHasher_UsesConfiguredCost(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("admin123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestPasswordHasher_VerifyDummyDoesNotPanic(t *testing.T) {
	h := newTestHasher(t)
	h.VerifyDummy("anything")
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(ResetTokenBytes)
	require.NoError(t, err)
	b, err := RandomHex(ResetTokenBytes)
	require.NoError(t, err)

	assert.Len(t, a, ResetTokenBytes*2)
	assert.Regexp(t, "^[0-9a-f]+$", a)
	assert.NotEqual(t, a, b)
}
