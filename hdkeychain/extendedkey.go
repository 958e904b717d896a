// Package hdkeychain provides hierarchical deterministic extended keys on
// the Ed25519 curve (BIP32-Ed25519, derivation scheme V2).  A master key is
// stretched from wallet entropy, child keys are derived per index with
// hardened and non-hardened schemes, and extended private keys sign
// messages with signatures verifiable by the standard Ed25519 verifier.
package hdkeychain

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"hash"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/pbkdf2"

	"github.com/adasuite/adawallet/internal/zero"
)

const (
	// HardenedKeyStart is the index at which a hardened key starts.  Each
	// extended key has 2^31 normal child keys and 2^31 hardened child
	// keys.  Thus the range for normal child keys is [0, 2^31 - 1] and
	// the range for hardened child keys is [2^31, 2^32 - 1].
	HardenedKeyStart uint32 = 0x80000000

	// masterKeyIterations is the PBKDF2 iteration count used when
	// stretching wallet entropy into the master extended key.
	masterKeyIterations = 4096

	// extendedKeyLen is the length of the serialized scalar half plus the
	// nonce half of an extended private key.
	extendedKeyLen = 64

	// chainCodeLen is the length of the chain code carried alongside a
	// key to enable further child derivation.
	chainCodeLen = 32
)

var (
	// ErrInvalidEntropy describes entropy that is too short to stretch
	// into a master key.
	ErrInvalidEntropy = errors.New("entropy must not be empty")

	// ErrInvalidKeyLen describes a raw secret whose length does not match
	// the requested key form.
	ErrInvalidKeyLen = errors.New("invalid private key length")

	// ErrDeriveHardFromPublic describes an attempt to derive a hardened
	// child from an extended public key, which is impossible by design.
	ErrDeriveHardFromPublic = errors.New("cannot derive a hardened key from a public key")
)

// ExtendedKey houses an extended private key: the clamped scalar half, the
// nonce half used during signing, and the chain code enabling child
// derivation.  The zero value is not usable; keys are obtained from
// NewMaster, NewFromSecret, or Child.
type ExtendedKey struct {
	keyData   [extendedKeyLen]byte
	chainCode [chainCodeLen]byte
}

// ExtendedPublicKey houses the public half of an extended key: the curve
// point and the chain code, which together allow non-hardened child
// derivation without any private material.
type ExtendedPublicKey struct {
	pubKey    [ed25519.PublicKeySize]byte
	chainCode [chainCodeLen]byte
}

// NewMaster stretches arbitrary wallet entropy into the master extended
// key.  The entropy is run through PBKDF2-HMAC-SHA512 and the resulting
// scalar half is clamped per the V2 derivation scheme.
func NewMaster(entropy []byte) (*ExtendedKey, error) {
	if len(entropy) == 0 {
		return nil, ErrInvalidEntropy
	}

	stretched := pbkdf2.Key(nil, entropy, masterKeyIterations,
		extendedKeyLen+chainCodeLen, sha512.New)
	defer zero.Bytes(stretched)

	// Clamp the scalar half.  The third-highest bit of the last scalar
	// byte must be cleared for the V2 child derivation additions to stay
	// within range.
	stretched[0] &= 0xf8
	stretched[31] &= 0x1f
	stretched[31] |= 0x40

	key := &ExtendedKey{}
	copy(key.keyData[:], stretched[:extendedKeyLen])
	copy(key.chainCode[:], stretched[extendedKeyLen:])
	return key, nil
}

// NewFromSecret wraps a raw Ed25519 secret as an extended key with an empty
// chain code.  A 32-byte secret is expanded with SHA-512 and clamped
// exactly as the standard Ed25519 signer does, so a normal key and its
// 64-byte expansion produce identical signatures.  The resulting key must
// not be used for child derivation.
func NewFromSecret(secret []byte) (*ExtendedKey, error) {
	key := &ExtendedKey{}
	switch len(secret) {
	case ed25519.SeedSize:
		digest := sha512.Sum512(secret)
		digest[0] &= 0xf8
		digest[31] &= 0x7f
		digest[31] |= 0x40
		copy(key.keyData[:], digest[:])
		zero.Bytea64(&digest)

	case extendedKeyLen:
		copy(key.keyData[:], secret)

	default:
		return nil, ErrInvalidKeyLen
	}
	return key, nil
}

// Zero clears all private material from the key.
func (k *ExtendedKey) Zero() {
	zero.Bytea64(&k.keyData)
	zero.Bytea32(&k.chainCode)
}

// scalar lifts the clamped scalar half into the group.  The bytes are not
// necessarily canonical mod the group order, so they are widened and
// reduced; scalar multiplication only depends on the residue.
func (k *ExtendedKey) scalar() *edwards25519.Scalar {
	var wide [64]byte
	copy(wide[:32], k.keyData[:32])
	s, err := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	zero.Bytea64(&wide)
	if err != nil {
		// SetUniformBytes only fails on a wrong input length.
		panic(err)
	}
	return s
}

// PubKey returns the Ed25519 public key point for this extended key.
func (k *ExtendedKey) PubKey() ed25519.PublicKey {
	point := new(edwards25519.Point).ScalarBaseMult(k.scalar())
	return point.Bytes()
}

// Neuter returns the extended public key corresponding to this extended
// private key, stripping all private material.
func (k *ExtendedKey) Neuter() *ExtendedPublicKey {
	pub := &ExtendedPublicKey{chainCode: k.chainCode}
	copy(pub.pubKey[:], k.PubKey())
	return pub
}

// deriveHalves runs the two HMAC-SHA512 invocations of the V2 scheme: one
// producing the Z value that is added into the key, one producing the
// child chain code.
func deriveHalves(chainCode []byte, zTag, ccTag byte, material []byte,
	index uint32) (zOut, ccOut [sha512.Size]byte) {

	var ser [4]byte
	binary.LittleEndian.PutUint32(ser[:], index)

	mac := func(tag byte) hash.Hash {
		h := hmac.New(sha512.New, chainCode)
		h.Write([]byte{tag})
		h.Write(material)
		h.Write(ser[:])
		return h
	}

	copy(zOut[:], mac(zTag).Sum(nil))
	copy(ccOut[:], mac(ccTag).Sum(nil))
	return zOut, ccOut
}

// add28Mul8 returns x + 8*z28 where x is a 32-byte little-endian value and
// only the first 28 bytes of z are used, truncating to 256 bits.
func add28Mul8(x, z []byte) [32]byte {
	var out [32]byte
	var carry uint16
	for i := 0; i < 28; i++ {
		r := uint16(x[i]) + uint16(z[i])<<3 + carry
		out[i] = byte(r)
		carry = r >> 8
	}
	for i := 28; i < 32; i++ {
		r := uint16(x[i]) + carry
		out[i] = byte(r)
		carry = r >> 8
	}
	return out
}

// add256 returns x + z truncated to 256 bits, both little endian.
func add256(x, z []byte) [32]byte {
	var out [32]byte
	var carry uint16
	for i := 0; i < 32; i++ {
		r := uint16(x[i]) + uint16(z[i]) + carry
		out[i] = byte(r)
		carry = r >> 8
	}
	return out
}

// Child derives the extended private key for the given index.  Indexes at
// or beyond HardenedKeyStart use the hardened scheme keyed by the private
// halves; lower indexes use the non-hardened scheme keyed by the public
// point, so the derived tree lines up with ExtendedPublicKey.Child.
func (k *ExtendedKey) Child(index uint32) (*ExtendedKey, error) {
	var z, cc [sha512.Size]byte
	if index >= HardenedKeyStart {
		z, cc = deriveHalves(k.chainCode[:], 0x00, 0x01, k.keyData[:], index)
	} else {
		pub := k.PubKey()
		z, cc = deriveHalves(k.chainCode[:], 0x02, 0x03, pub, index)
	}
	defer zero.Bytea64(&z)
	defer zero.Bytea64(&cc)

	child := &ExtendedKey{}
	kl := add28Mul8(k.keyData[:32], z[:28])
	kr := add256(k.keyData[32:], z[32:])
	copy(child.keyData[:32], kl[:])
	copy(child.keyData[32:], kr[:])
	copy(child.chainCode[:], cc[32:])
	zero.Bytea32(&kl)
	zero.Bytea32(&kr)
	return child, nil
}

// Sign produces an Ed25519 signature over msg using the extended key.  The
// nonce is derived from the nonce half rather than by re-expanding a seed,
// which is what allows derived child keys (whose scalar no longer
// corresponds to any seed) to sign.  Signatures verify with the standard
// Ed25519 verifier against PubKey.
func (k *ExtendedKey) Sign(msg []byte) []byte {
	pub := k.PubKey()

	nonceDigest := sha512.New()
	nonceDigest.Write(k.keyData[32:])
	nonceDigest.Write(msg)
	r, err := new(edwards25519.Scalar).SetUniformBytes(nonceDigest.Sum(nil))
	if err != nil {
		panic(err)
	}

	bigR := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	hramDigest := sha512.New()
	hramDigest.Write(bigR)
	hramDigest.Write(pub)
	hramDigest.Write(msg)
	hram, err := new(edwards25519.Scalar).SetUniformBytes(hramDigest.Sum(nil))
	if err != nil {
		panic(err)
	}

	s := new(edwards25519.Scalar).MultiplyAdd(hram, k.scalar(), r)

	sig := make([]byte, ed25519.SignatureSize)
	copy(sig[:32], bigR)
	copy(sig[32:], s.Bytes())
	return sig
}

// PubKey returns the raw Ed25519 public key.
func (k *ExtendedPublicKey) PubKey() ed25519.PublicKey {
	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, k.pubKey[:])
	return pub
}

// Bytes returns the serialized extended public key: the 32-byte point
// followed by the 32-byte chain code.
func (k *ExtendedPublicKey) Bytes() []byte {
	out := make([]byte, ed25519.PublicKeySize+chainCodeLen)
	copy(out, k.pubKey[:])
	copy(out[ed25519.PublicKeySize:], k.chainCode[:])
	return out
}

// ParseExtendedPublicKey deserializes the output of Bytes.
func ParseExtendedPublicKey(data []byte) (*ExtendedPublicKey, error) {
	if len(data) != ed25519.PublicKeySize+chainCodeLen {
		return nil, ErrInvalidKeyLen
	}
	pub := &ExtendedPublicKey{}
	copy(pub.pubKey[:], data[:ed25519.PublicKeySize])
	copy(pub.chainCode[:], data[ed25519.PublicKeySize:])
	return pub, nil
}

// Child derives the non-hardened child public key for the given index
// without any private material: the Z value scaled by eight is added to
// the parent point.  Hardened indexes fail with ErrDeriveHardFromPublic.
func (k *ExtendedPublicKey) Child(index uint32) (*ExtendedPublicKey, error) {
	if index >= HardenedKeyStart {
		return nil, ErrDeriveHardFromPublic
	}

	z, cc := deriveHalves(k.chainCode[:], 0x02, 0x03, k.pubKey[:], index)

	var zero32 [32]byte
	zl8 := add28Mul8(zero32[:], z[:28])

	var wide [64]byte
	copy(wide[:32], zl8[:])
	scalar, err := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	if err != nil {
		panic(err)
	}

	parent, err := new(edwards25519.Point).SetBytes(k.pubKey[:])
	if err != nil {
		return nil, err
	}
	sum := new(edwards25519.Point).Add(
		parent, new(edwards25519.Point).ScalarBaseMult(scalar),
	)

	child := &ExtendedPublicKey{}
	copy(child.pubKey[:], sum.Bytes())
	copy(child.chainCode[:], cc[32:])
	return child, nil
}
