package tokens

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomID(t *testing.T) {
	id := RandomID(28)
	require.Len(t, id, 28)
	require.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]+$`), id)
	require.NotEqual(t, id, RandomID(28))
}

func TestRandomDigits(t *testing.T) {
	code := RandomDigits(6)
	require.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
}

func TestGenerateOpaqueToken(t *testing.T) {
	tok := GenerateOpaqueToken(32)
	require.Len(t, tok, 43)
	require.NotContains(t, tok, "=")
}
