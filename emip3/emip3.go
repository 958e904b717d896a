// Package emip3 implements the EMIP-003 password-based authenticated
// encryption scheme used to protect wallet secrets at rest.  A key is
// stretched from the passphrase with PBKDF2-HMAC-SHA512 and the payload is
// sealed with ChaCha20-Poly1305, so any tampering with the ciphertext (or a
// wrong passphrase) is detected on open.
package emip3

import (
	"crypto/rand"
	"crypto/sha512"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/adasuite/adawallet/internal/zero"
)

const (
	// saltSize is the number of random salt bytes mixed into the KDF and
	// prepended to the sealed payload.
	saltSize = 32

	// keyIterations is the PBKDF2 iteration count fixed by EMIP-003.
	keyIterations = 19162

	// tagSize is the size of the Poly1305 authentication tag trailing
	// the ciphertext.
	tagSize = 16
)

// ErrAuthFailed describes a failure to open a sealed payload because the
// authentication tag did not verify.  A wrong passphrase and a modified
// ciphertext are indistinguishable at this layer.
var ErrAuthFailed = errors.New("authentication failed: wrong passphrase or corrupted data")

// ErrMalformed describes a sealed payload that is too short to contain the
// salt, nonce, and authentication tag.
var ErrMalformed = errors.New("sealed payload is malformed")

// deriveKey stretches the passphrase into a cipher key using the fixed
// EMIP-003 PBKDF2 parameters and the given salt.
func deriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, keyIterations, chacha20poly1305.KeySize,
		sha512.New)
}

// Encrypt seals data under the passphrase.  The returned payload is
// salt || nonce || ciphertext where the ciphertext carries the Poly1305 tag.
// Both the salt and nonce are freshly randomized per call.
func Encrypt(passphrase, data []byte) ([]byte, error) {
	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}

	key := deriveKey(passphrase, salt[:])
	defer zero.Bytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(data)+aead.Overhead())
	out = append(out, salt[:]...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, nil), nil
}

// Decrypt opens a payload produced by Encrypt.  It returns ErrAuthFailed
// when the passphrase is wrong or the ciphertext was modified.  The caller
// owns the returned plaintext and is responsible for zeroing it.
func Decrypt(passphrase, data []byte) ([]byte, error) {
	if len(data) < saltSize+chacha20poly1305.NonceSize+tagSize {
		return nil, ErrMalformed
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+chacha20poly1305.NonceSize]
	ciphertext := data[saltSize+chacha20poly1305.NonceSize:]

	key := deriveKey(passphrase, salt)
	defer zero.Bytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}
