package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authemu/internal/errors"
)

func TestPolicy(t *testing.T) {
	require.NoError(t, DefaultPolicy.Check("123456"))
	err := DefaultPolicy.Check("12345")
	require.ErrorIs(t, err, errors.ErrWeakPassword)
	require.Equal(t, "WEAK_PASSWORD : Password should be at least 6 characters", errors.FromError(err).Message())
}

func TestFakeHash(t *testing.T) {
	salt := NewSalt()
	require.True(t, strings.HasPrefix(salt, "fakeSalt"))
	require.Len(t, salt, len("fakeSalt")+20)

	h := Hash("notasecret", salt)
	require.Equal(t, "fakeHash:salt="+salt+":password=notasecret", h)
	require.True(t, Verify("notasecret", h, salt))
	require.False(t, Verify("wrong", h, salt))
	require.False(t, Verify("notasecret", h, "otherSalt"))
}

func TestImportedBcrypt(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	h, err := ImportBcrypt(raw)
	require.NoError(t, err)
	require.True(t, Verify("hunter22", h, ""))
	require.False(t, Verify("hunter23", h, ""))

	_, err = ImportBcrypt([]byte("not-bcrypt"))
	require.Error(t, err)
}
