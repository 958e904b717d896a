package keymgr

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// The serialized envelope persists a handler across process lifetimes:
//
//	magic (4) | version (1) | variant tag (1) | ciphertext len (4, BE) |
//	ciphertext (var) | checksum (4, BE)
//
// The checksum covers every preceding byte and gives independent tamper
// detection before any decryption is attempted.  The ciphertext itself is
// the emip3 payload produced at construction time; serialization never
// re-queries the passphrase.
var envelopeMagic = [4]byte{0x0a, 0x0a, 0x0a, 0x0a}

const (
	// envelopeVersion is the only format version currently produced or
	// accepted.
	envelopeVersion = 1

	// envelopeHeaderLen is the size of the fixed fields preceding the
	// ciphertext.
	envelopeHeaderLen = 4 + 1 + 1 + 4

	// envelopeChecksumLen is the size of the trailing CRC32 checksum.
	envelopeChecksumLen = 4

	// maxCiphertextLen bounds the declared ciphertext size so a
	// malformed length field cannot drive an oversized allocation.
	maxCiphertextLen = 1 << 20
)

// Serialize produces the envelope form of the handler.  Only ciphertext
// and non-secret metadata are written; the passphrase is not queried.
func (h *KeyHandler) Serialize() ([]byte, error) {
	if h == nil {
		return nil, keyringError(ErrNilArgument, "key handler is nil", nil)
	}
	if len(h.encryptedKey) > maxCiphertextLen {
		return nil, keyringError(ErrAllocFailed,
			"ciphertext exceeds envelope capacity", nil)
	}

	buf := bytes.NewBuffer(make([]byte, 0,
		envelopeHeaderLen+len(h.encryptedKey)+envelopeChecksumLen))
	buf.Write(envelopeMagic[:])
	buf.WriteByte(envelopeVersion)
	buf.WriteByte(byte(h.variant))

	var lenField [4]byte
	binary.BigEndian.PutUint32(lenField[:], uint32(len(h.encryptedKey)))
	buf.Write(lenField[:])
	buf.Write(h.encryptedKey)

	var checksum [envelopeChecksumLen]byte
	binary.BigEndian.PutUint32(checksum[:], crc32.ChecksumIEEE(buf.Bytes()))
	buf.Write(checksum[:])

	return buf.Bytes(), nil
}

// Deserialize reconstructs a handler from its envelope form.  Validation
// proceeds in order: the magic marker, the structural fields, and finally
// the checksum.  The ciphertext is retained as-is and not decrypted;
// decryption is deferred to the first operation that needs the secret,
// which is also when the passphrase callback is first consulted.
func Deserialize(data []byte, fetch PassphraseFunc) (*KeyHandler, error) {
	if data == nil || fetch == nil {
		return nil, keyringError(ErrNilArgument,
			"envelope data and passphrase callback are required", nil)
	}

	if len(data) < len(envelopeMagic) {
		return nil, keyringError(ErrDecode,
			"envelope too short to carry a magic marker", nil)
	}
	if !bytes.Equal(data[:len(envelopeMagic)], envelopeMagic[:]) {
		return nil, keyringError(ErrInvalidMagic,
			"envelope magic mismatch", nil)
	}

	if len(data) < envelopeHeaderLen {
		return nil, keyringError(ErrDecode,
			"envelope header is truncated", nil)
	}
	if data[4] != envelopeVersion {
		return nil, keyringError(ErrDecode,
			"unsupported envelope version", nil)
	}

	variant := KeyVariant(data[5])
	switch variant {
	case VariantBip32, VariantEd25519Normal, VariantEd25519Extended:
	default:
		return nil, keyringError(ErrDecode,
			"unknown key variant tag", nil)
	}

	ciphertextLen := binary.BigEndian.Uint32(data[6:envelopeHeaderLen])
	if ciphertextLen > maxCiphertextLen {
		return nil, keyringError(ErrAllocFailed,
			"declared ciphertext length exceeds envelope capacity", nil)
	}
	end := envelopeHeaderLen + int(ciphertextLen)
	if end+envelopeChecksumLen > len(data) {
		return nil, keyringError(ErrOutOfBounds,
			"declared ciphertext length reads past the envelope", nil)
	}
	if end+envelopeChecksumLen != len(data) {
		return nil, keyringError(ErrDecode,
			"trailing bytes after envelope checksum", nil)
	}

	// Structural parse succeeded; only now is the checksum verified.
	want := binary.BigEndian.Uint32(data[end:])
	if crc32.ChecksumIEEE(data[:end]) != want {
		return nil, keyringError(ErrChecksumMismatch,
			"envelope checksum mismatch", nil)
	}

	encrypted := make([]byte, ciphertextLen)
	copy(encrypted, data[envelopeHeaderLen:end])

	return &KeyHandler{
		variant:         variant,
		encryptedKey:    encrypted,
		fetchPassphrase: fetch,
	}, nil
}
