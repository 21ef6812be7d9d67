package reconcile

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestShortenName(t *testing.T) {
	t.Run("Short names are unchanged", func(t *testing.T) {
		assert.Equal(t, "name", ShortenName("name"))
		exact := strings.Repeat("a", 63)
		assert.Equal(t, exact, ShortenName(exact))
	})

	t.Run("Long names get a hash suffix", func(t *testing.T) {
		long := strings.Repeat("x", 80)
		sum := md5.Sum([]byte(long))

		got := ShortenName(long)
		assert.Len(t, got, 63)
		assert.Equal(t, strings.Repeat("x", 54)+"_"+hex.EncodeToString(sum[:])[:8], got)
	})

	t.Run("Deterministic and distinct", func(t *testing.T) {
		a := strings.Repeat("attribute_", 8) + "one"
		b := strings.Repeat("attribute_", 8) + "two"
		assert.Equal(t, ShortenName(a), ShortenName(a))
		assert.NotEqual(t, ShortenName(a), ShortenName(b))
	})

	t.Run("Multibyte names stay valid UTF-8", func(t *testing.T) {
		long := strings.Repeat("ü", 40)
		got := ShortenName(long)
		assert.Len(t, got, 63)
		assert.True(t, utf8.ValidString(got))
	})
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "host", TableName("Host"))
	assert.Equal(t, "softwareinstance", TableName("SoftwareInstance"))
	assert.Equal(t, "business_application_instance", TableName("Business Application Instance"))
}
