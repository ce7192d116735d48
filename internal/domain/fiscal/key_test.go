package fiscal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixture keys carry model 55 (NF-e) and 57 (CT-e) with valid check digits.
const (
	validNFeKey  = "35260112345678000190550010000000421123456786"
	validNFeKey2 = "35260212345678000190550010000000431000000017"
	validCTeKey  = "35260199888777000166570010000000991000007775"
)

func TestValidateKey(t *testing.T) {
	t.Run("accepts valid keys", func(t *testing.T) {
		assert.True(t, ValidateKey(validNFeKey))
		assert.True(t, ValidateKey(validNFeKey2))
		assert.True(t, ValidateKey(validCTeKey))
	})

	t.Run("rejects a flipped check digit", func(t *testing.T) {
		bad := validNFeKey[:43] + "7"
		assert.False(t, ValidateKey(bad))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		assert.False(t, ValidateKey(validNFeKey[:43]))
		assert.False(t, ValidateKey(validNFeKey+"0"))
		assert.False(t, ValidateKey(""))
	})

	t.Run("rejects non-digits", func(t *testing.T) {
		bad := "X" + validNFeKey[1:]
		assert.False(t, ValidateKey(bad))
	})
}

func TestAccessKeyFields(t *testing.T) {
	key, err := ParseAccessKey(validNFeKey)
	require.NoError(t, err)

	assert.Equal(t, "35", key.UF())
	assert.Equal(t, "12345678000190", key.IssuerCNPJ())
	assert.Equal(t, "55", key.Model())
	assert.Equal(t, "001", key.Series())
	assert.Equal(t, "000000042", key.Number())

	year, month := key.EmissionYearMonth()
	assert.Equal(t, 2026, year)
	assert.Equal(t, time.January, month)

	kind, err := key.KindFromModel()
	require.NoError(t, err)
	assert.Equal(t, KindNFe, kind)
}

func TestAccessKeyCTe(t *testing.T) {
	key, err := ParseAccessKey(validCTeKey)
	require.NoError(t, err)
	kind, err := key.KindFromModel()
	require.NoError(t, err)
	assert.Equal(t, KindCTe, kind)
}

func TestParseAccessKeyRejectsInvalid(t *testing.T) {
	_, err := ParseAccessKey("not-a-key")
	assert.ErrorIs(t, err, ErrInvalidAccessKey)
}
