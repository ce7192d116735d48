package vault

import (
	"strings"
	"testing"

	"github.com/fiscalerp/backend/internal/domain/certificate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	masterKeyA = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	masterKeyB = "ffeeddccbbaa99887766554433221100ffeeddccbbaa99887766554433221100"
)

func TestNewKeeper(t *testing.T) {
	t.Run("accepts a 32 byte hex key", func(t *testing.T) {
		keeper, err := NewKeeper(masterKeyA)
		require.NoError(t, err)
		assert.Len(t, keeper.Fingerprint(), 16)
	})

	t.Run("rejects short keys", func(t *testing.T) {
		_, err := NewKeeper("0011223344")
		assert.Error(t, err)
	})

	t.Run("rejects non-hex keys", func(t *testing.T) {
		_, err := NewKeeper(strings.Repeat("zz", 32))
		assert.Error(t, err)
	})
}

func TestSealOpenRoundTrip(t *testing.T) {
	keeper, err := NewKeeper(masterKeyA)
	require.NoError(t, err)

	plaintext := []byte("pkcs12 bundle bytes")
	sealed, err := keeper.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := keeper.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	keeper, err := NewKeeper(masterKeyA)
	require.NoError(t, err)

	a, err := keeper.Seal([]byte("same input"))
	require.NoError(t, err)
	b, err := keeper.Seal([]byte("same input"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenWithWrongKey(t *testing.T) {
	keeperA, err := NewKeeper(masterKeyA)
	require.NoError(t, err)
	keeperB, err := NewKeeper(masterKeyB)
	require.NoError(t, err)

	sealed, err := keeperA.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = keeperB.Open(sealed)
	assert.ErrorIs(t, err, certificate.ErrDecryptionKeyMismatch)
}

func TestOpenTruncatedBlob(t *testing.T) {
	keeper, err := NewKeeper(masterKeyA)
	require.NoError(t, err)

	_, err = keeper.Open([]byte("short"))
	assert.ErrorIs(t, err, certificate.ErrDecryptionKeyMismatch)
}

func TestRewrap(t *testing.T) {
	old, err := NewKeeper(masterKeyA)
	require.NoError(t, err)
	next, err := NewKeeper(masterKeyB)
	require.NoError(t, err)

	sealed, err := old.Seal([]byte("rotate me"))
	require.NoError(t, err)

	resealed, err := next.Rewrap(old, sealed)
	require.NoError(t, err)

	opened, err := next.Open(resealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("rotate me"), opened)

	_, err = old.Open(resealed)
	assert.Error(t, err)

	assert.NotEqual(t, old.Fingerprint(), next.Fingerprint())
}
