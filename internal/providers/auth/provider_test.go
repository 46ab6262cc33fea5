package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	p := NewProvider("")

	user, err := p.Register("alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.NotContains(t, user.PasswordHash, "s3cret")

	got, err := p.Authenticate("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestRegisterValidation(t *testing.T) {
	p := NewProvider("")

	_, err := p.Register("", "pw")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = p.Register("bob", "")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = p.Register("bob", "pw")
	require.NoError(t, err)

	_, err = p.Register("bob", "other")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestAuthenticateFailures(t *testing.T) {
	p := NewProvider("")
	_, err := p.Register("alice", "s3cret")
	require.NoError(t, err)

	_, err = p.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.Authenticate("ghost", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.Authenticate("", "")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestExists(t *testing.T) {
	p := NewProvider("")
	assert.False(t, p.Exists("alice"))

	_, err := p.Register("alice", "pw")
	require.NoError(t, err)
	assert.True(t, p.Exists("alice"))
}

func TestPersistenceAcrossProviders(t *testing.T) {
	dir := t.TempDir()

	p1 := NewProvider(dir)
	_, err := p1.Register("alice", "s3cret")
	require.NoError(t, err)

	p2 := NewProvider(dir)
	assert.True(t, p2.Exists("alice"))

	_, err = p2.Authenticate("alice", "s3cret")
	require.NoError(t, err)
}
