package hdkeychain

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewMasterDeterministic ensures the same entropy always stretches into
// the same master key material.
func TestNewMasterDeterministic(t *testing.T) {
	entropy := bytes.Repeat([]byte{0x2a}, 32)

	first, err := NewMaster(entropy)
	require.NoError(t, err)
	second, err := NewMaster(entropy)
	require.NoError(t, err)

	require.Equal(t, first.keyData, second.keyData)
	require.Equal(t, first.chainCode, second.chainCode)
	require.Equal(t, first.PubKey(), second.PubKey())
}

// TestNewMasterEmptyEntropy ensures empty entropy is rejected.
func TestNewMasterEmptyEntropy(t *testing.T) {
	_, err := NewMaster(nil)
	require.Equal(t, ErrInvalidEntropy, err)
}

// TestMasterClamp verifies the scalar half of a master key carries the V2
// clamping bits.
func TestMasterClamp(t *testing.T) {
	key, err := NewMaster([]byte("test entropy"))
	require.NoError(t, err)

	require.Zero(t, key.keyData[0]&0x07)
	require.Zero(t, key.keyData[31]&0x80)
	require.Zero(t, key.keyData[31]&0x20)
	require.Equal(t, byte(0x40), key.keyData[31]&0x40)
}

// TestSignVerifies ensures signatures from the master key and from both
// hardened and non-hardened children verify under the standard Ed25519
// verifier.
func TestSignVerifies(t *testing.T) {
	master, err := NewMaster([]byte("signing test entropy"))
	require.NoError(t, err)

	msg := []byte("transaction identifier")

	keys := []*ExtendedKey{master}

	hardened, err := master.Child(HardenedKeyStart + 1852)
	require.NoError(t, err)
	keys = append(keys, hardened)

	soft, err := hardened.Child(3)
	require.NoError(t, err)
	keys = append(keys, soft)

	for i, key := range keys {
		sig := key.Sign(msg)
		require.Len(t, sig, ed25519.SignatureSize)
		require.True(t, ed25519.Verify(key.PubKey(), msg, sig), "key %d", i)
	}
}

// TestSignDeterministic ensures signing the same message twice yields the
// same signature.
func TestSignDeterministic(t *testing.T) {
	key, err := NewMaster([]byte("determinism entropy"))
	require.NoError(t, err)

	msg := []byte("message")
	require.Equal(t, key.Sign(msg), key.Sign(msg))
}

// TestPublicChildMatchesPrivate ensures non-hardened public derivation
// yields the same public key as deriving privately and then neutering.
func TestPublicChildMatchesPrivate(t *testing.T) {
	master, err := NewMaster([]byte("public derivation entropy"))
	require.NoError(t, err)

	account, err := master.Child(HardenedKeyStart)
	require.NoError(t, err)
	accountPub := account.Neuter()

	for _, index := range []uint32{0, 1, 7, 42} {
		privChild, err := account.Child(index)
		require.NoError(t, err)

		pubChild, err := accountPub.Child(index)
		require.NoError(t, err)

		require.Equal(t, privChild.PubKey(), pubChild.PubKey(), "index %d", index)
	}
}

// TestPublicChildHardened ensures hardened derivation from a public key is
// rejected.
func TestPublicChildHardened(t *testing.T) {
	master, err := NewMaster([]byte("entropy"))
	require.NoError(t, err)

	_, err = master.Neuter().Child(HardenedKeyStart)
	require.Equal(t, ErrDeriveHardFromPublic, err)
}

// TestNewFromSecretNormalMatchesStdlib ensures a wrapped 32-byte seed signs
// identically to the standard library signer for the same seed.
func TestNewFromSecretNormalMatchesStdlib(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	key, err := NewFromSecret(seed)
	require.NoError(t, err)

	stdKey := ed25519.NewKeyFromSeed(seed)
	msg := []byte("compare against the standard signer")

	require.Equal(t, []byte(stdKey.Public().(ed25519.PublicKey)), []byte(key.PubKey()))
	require.Equal(t, ed25519.Sign(stdKey, msg), key.Sign(msg))
}

// TestNewFromSecretExtendedEquivalence ensures a 32-byte seed and its
// 64-byte expansion sign identically.
func TestNewFromSecretExtendedEquivalence(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	normal, err := NewFromSecret(seed)
	require.NoError(t, err)

	extended, err := NewFromSecret(normal.keyData[:])
	require.NoError(t, err)

	msg := []byte("normal and extended forms agree")
	require.Equal(t, normal.PubKey(), extended.PubKey())
	require.Equal(t, normal.Sign(msg), extended.Sign(msg))
}

// TestNewFromSecretBadLength ensures off-size secrets are rejected.
func TestNewFromSecretBadLength(t *testing.T) {
	_, err := NewFromSecret(make([]byte, 33))
	require.Equal(t, ErrInvalidKeyLen, err)
}

// TestExtendedPublicKeySerialization round-trips the xpub wire form.
func TestExtendedPublicKeySerialization(t *testing.T) {
	master, err := NewMaster([]byte("serialization entropy"))
	require.NoError(t, err)

	pub := master.Neuter()
	parsed, err := ParseExtendedPublicKey(pub.Bytes())
	require.NoError(t, err)
	require.Equal(t, pub.Bytes(), parsed.Bytes())

	_, err = ParseExtendedPublicKey(make([]byte, 63))
	require.Equal(t, ErrInvalidKeyLen, err)
}
