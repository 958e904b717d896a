package emip3

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

// TestRoundTrip ensures data sealed under a passphrase opens back to the
// original plaintext.
func TestRoundTrip(t *testing.T) {
	passphrase := []byte("correct horse battery staple")
	data := []byte("extended signing key material")

	sealed, err := Encrypt(passphrase, data)
	require.NoError(t, err)
	require.NotEqual(t, data, sealed)

	opened, err := Decrypt(passphrase, sealed)
	require.NoError(t, err)
	require.Equal(t, data, opened)
}

// TestEncryptRandomized ensures the salt and nonce are freshly randomized,
// so sealing the same plaintext twice yields different payloads.
func TestEncryptRandomized(t *testing.T) {
	passphrase := []byte("password")
	data := []byte("seed")

	first, err := Encrypt(passphrase, data)
	require.NoError(t, err)
	second, err := Encrypt(passphrase, data)
	require.NoError(t, err)

	require.False(t, bytes.Equal(first, second))
}

// TestWrongPassphrase ensures opening with the wrong passphrase fails with
// ErrAuthFailed rather than returning garbage.
func TestWrongPassphrase(t *testing.T) {
	sealed, err := Encrypt([]byte("password"), []byte("secret"))
	require.NoError(t, err)

	_, err = Decrypt([]byte("passwordd"), sealed)
	require.Equal(t, ErrAuthFailed, err)
}

// TestTamperedCiphertext flips a single byte of the sealed payload and
// verifies the authentication tag rejects it.
func TestTamperedCiphertext(t *testing.T) {
	sealed, err := Encrypt([]byte("password"), []byte("secret"))
	require.NoError(t, err)

	for _, idx := range []int{0, saltSize, len(sealed) - 1} {
		mutated := make([]byte, len(sealed))
		copy(mutated, sealed)
		mutated[idx] ^= 0x01

		_, err = Decrypt([]byte("password"), mutated)
		require.Equal(t, ErrAuthFailed, err, "byte %d", idx)
	}
}

// TestShortPayload ensures truncated payloads are rejected as malformed
// before any KDF work happens.  The minimum payload is a sealed empty
// plaintext: salt, nonce, and the authentication tag alone.
func TestShortPayload(t *testing.T) {
	_, err := Decrypt([]byte("password"), make([]byte, saltSize))
	require.Equal(t, ErrMalformed, err)

	sealed, err := Encrypt([]byte("password"), nil)
	require.NoError(t, err)
	require.Len(t, sealed, saltSize+chacha20poly1305.NonceSize+tagSize)

	_, err = Decrypt([]byte("password"), sealed[:len(sealed)-1])
	require.Equal(t, ErrMalformed, err)

	opened, err := Decrypt([]byte("password"), sealed)
	require.NoError(t, err)
	require.Empty(t, opened)
}
