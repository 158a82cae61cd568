package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, "secret1", hashed)
	assert.True(t, CheckPasswordHash("secret1", hashed))
	assert.False(t, CheckPasswordHash("secret2", hashed))
	assert.False(t, CheckPasswordHash("secret1", "not-a-hash"))
}
