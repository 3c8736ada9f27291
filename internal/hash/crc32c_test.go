package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720, B.4.
	assert.Equal(t, uint32(0xe3069283), CRC32C([]byte("123456789")))

	sum := CRC32C([]byte("proxy"))
	assert.True(t, VerifyCRC32C([]byte("proxy"), sum))
	assert.False(t, VerifyCRC32C([]byte("proxz"), sum))
}
