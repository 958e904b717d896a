// Package keymgr implements the secure key handler: signing-key material
// held encrypted at rest, decrypted only transiently under a
// caller-supplied passphrase, and used to derive per-transaction signing
// keys and verification-key witnesses.
//
// A handler is one of two variants.  The BIP32 variant holds the
// ciphertext of wallet entropy and derives hierarchical child keys on
// demand per derivation path.  The Ed25519 variant holds the ciphertext of
// a single private key, in normal (32-byte seed) or extended (64-byte
// expanded) form, and resolves every request to that one key.
//
// The plaintext of either payload never exists outside the lifetime of a
// single decrypt, use, discard operation.  The handler's persistent state
// is always ciphertext plus non-secret metadata.
package keymgr

import (
	"crypto/ed25519"

	"github.com/adasuite/adawallet/emip3"
	"github.com/adasuite/adawallet/hdkeychain"
	"github.com/adasuite/adawallet/internal/zero"
)

// KeyVariant identifies the key-management strategy of a handler.  The
// values are stable as they appear in the serialized envelope.
type KeyVariant byte

const (
	// VariantBip32 is a handler holding encrypted entropy from which
	// child signing keys are derived hierarchically.
	VariantBip32 KeyVariant = 1

	// VariantEd25519Normal is a handler holding a single encrypted
	// Ed25519 private key in 32-byte seed form.
	VariantEd25519Normal KeyVariant = 2

	// VariantEd25519Extended is a handler holding a single encrypted
	// Ed25519 private key in 64-byte expanded form.
	VariantEd25519Extended KeyVariant = 3
)

// MaxPassphraseLen is the capacity of the buffer handed to a
// PassphraseFunc.  Passphrases longer than this are not supported.
const MaxPassphraseLen = 128

// PassphraseFunc is the capability a caller supplies for retrieving the
// current passphrase.  It writes the passphrase into buf and returns the
// number of bytes written.  A negative count or a non-nil error signals
// that no passphrase is available, which the handler reports as
// ErrWrongPassphrase.  The callback is invoked fresh for every operation
// that needs to decrypt; the result is never cached.
type PassphraseFunc func(buf []byte) (int, error)

// KeyHandler stores sensitive key material encrypted at rest and signs
// transaction identifiers on request.  A handler is effectively immutable
// once constructed: its ciphertext never changes and there is no
// change-passphrase operation.  Callers sharing a handler across
// goroutines must serialize calls themselves if their passphrase callback
// is not safe for concurrent invocation.
type KeyHandler struct {
	variant         KeyVariant
	encryptedKey    []byte
	fetchPassphrase PassphraseFunc
}

// NewBip32 constructs a hierarchical handler from raw wallet entropy.  The
// entropy is encrypted under passphrase immediately and the plaintext is
// not retained; fetch is kept for all future decrypt operations and is
// expected to reproduce the same passphrase.
func NewBip32(entropy, passphrase []byte,
	fetch PassphraseFunc) (*KeyHandler, error) {

	if entropy == nil || passphrase == nil || fetch == nil {
		return nil, keyringError(ErrNilArgument,
			"entropy, passphrase, and passphrase callback are required",
			nil)
	}
	if len(entropy) == 0 || len(passphrase) == 0 {
		return nil, keyringError(ErrInvalidArgument,
			"entropy and passphrase must not be empty", nil)
	}

	encrypted, err := emip3.Encrypt(passphrase, entropy)
	if err != nil {
		return nil, keyringError(ErrCrypto,
			"failed to encrypt entropy", err)
	}

	return &KeyHandler{
		variant:         VariantBip32,
		encryptedKey:    encrypted,
		fetchPassphrase: fetch,
	}, nil
}

// NewEd25519 constructs a single-key handler from an existing Ed25519
// private key in seed (32-byte) or extended (64-byte) form.  The key is
// encrypted under passphrase immediately and the plaintext is not
// retained.
func NewEd25519(privKey, passphrase []byte,
	fetch PassphraseFunc) (*KeyHandler, error) {

	if privKey == nil || passphrase == nil || fetch == nil {
		return nil, keyringError(ErrNilArgument,
			"private key, passphrase, and passphrase callback are required",
			nil)
	}
	if len(passphrase) == 0 {
		return nil, keyringError(ErrInvalidArgument,
			"passphrase must not be empty", nil)
	}

	var variant KeyVariant
	switch len(privKey) {
	case ed25519.SeedSize:
		variant = VariantEd25519Normal
	case 64:
		variant = VariantEd25519Extended
	default:
		return nil, keyringError(ErrInvalidArgument,
			"private key must be 32 or 64 bytes", nil)
	}

	encrypted, err := emip3.Encrypt(passphrase, privKey)
	if err != nil {
		return nil, keyringError(ErrCrypto,
			"failed to encrypt private key", err)
	}

	return &KeyHandler{
		variant:         variant,
		encryptedKey:    encrypted,
		fetchPassphrase: fetch,
	}, nil
}

// Variant returns the key-management strategy of the handler.
func (h *KeyHandler) Variant() KeyVariant {
	return h.variant
}

// Close makes a best-effort attempt to remove the ciphertext from memory.
// The handler must not be used afterwards.  Plaintext key material was
// never retained, so there is nothing else to clear.
func (h *KeyHandler) Close() {
	zero.Bytes(h.encryptedKey)
	h.encryptedKey = nil
	h.fetchPassphrase = nil
}

// withSecret runs fn with the decrypted secret.  It invokes the passphrase
// callback exactly once into a bounded buffer, decrypts the stored
// ciphertext, and zeroes both the passphrase and the plaintext before
// returning.  A declined callback and an AEAD authentication failure both
// surface as ErrWrongPassphrase since the cipher cannot distinguish a
// wrong password from a tampered ciphertext.
func (h *KeyHandler) withSecret(fn func(secret []byte) error) error {
	buf := make([]byte, MaxPassphraseLen)
	defer zero.Bytes(buf)

	n, err := h.fetchPassphrase(buf)
	if err != nil || n < 0 {
		return keyringError(ErrWrongPassphrase,
			"passphrase callback declined to provide a passphrase", err)
	}
	if n > len(buf) {
		return keyringError(ErrInvalidArgument,
			"passphrase callback overran its buffer", nil)
	}

	secret, err := emip3.Decrypt(buf[:n], h.encryptedKey)
	if err != nil {
		return keyringError(ErrWrongPassphrase,
			"wrong passphrase or corrupted key material", err)
	}
	defer zero.Bytes(secret)

	return fn(secret)
}

// AccountPublicKey derives the account-level extended public key used for
// address discovery.  No private key leaves this call, but the seed must
// still be decrypted to derive down to the account level, so a passphrase
// round-trip is required.  Only the BIP32 variant has an account space.
func (h *KeyHandler) AccountPublicKey(
	path AccountPath) (*hdkeychain.ExtendedPublicKey, error) {

	if h == nil {
		return nil, keyringError(ErrNilArgument, "key handler is nil", nil)
	}
	if h.variant != VariantBip32 {
		return nil, keyringError(ErrInvalidArgument,
			"handler does not hold hierarchical key material", nil)
	}

	var accountPub *hdkeychain.ExtendedPublicKey
	err := h.withSecret(func(secret []byte) error {
		master, err := hdkeychain.NewMaster(secret)
		if err != nil {
			return keyringError(ErrCrypto,
				"failed to derive master key", err)
		}
		defer master.Zero()

		account, err := deriveAccountKey(master, path)
		if err != nil {
			return err
		}
		defer account.Zero()

		accountPub = account.Neuter()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accountPub, nil
}

// Ed25519PublicKey returns the public key of the single stored private
// key.  Only the Ed25519 variants have one; the decrypt requires a
// passphrase round-trip.
func (h *KeyHandler) Ed25519PublicKey() (ed25519.PublicKey, error) {
	if h == nil {
		return nil, keyringError(ErrNilArgument, "key handler is nil", nil)
	}
	if h.variant != VariantEd25519Normal &&
		h.variant != VariantEd25519Extended {

		return nil, keyringError(ErrInvalidArgument,
			"handler does not hold a single Ed25519 key", nil)
	}

	var pubKey ed25519.PublicKey
	err := h.withSecret(func(secret []byte) error {
		key, err := hdkeychain.NewFromSecret(secret)
		if err != nil {
			return keyringError(ErrCrypto,
				"stored private key is malformed", err)
		}
		defer key.Zero()

		pubKey = key.PubKey()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pubKey, nil
}
