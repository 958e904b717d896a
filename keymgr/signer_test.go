package keymgr

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adasuite/adawallet/tx"
)

func testTransaction() tx.Transaction {
	return tx.NewRawTransaction([]byte("canonical transaction body"))
}

var signingPaths = []DerivationPath{
	{Purpose: PurposeStandard, CoinType: CoinTypeADA, Role: RoleExternal},
	{Purpose: PurposeStandard, CoinType: CoinTypeADA, Role: RoleStaking},
	{Purpose: PurposeStandard, CoinType: CoinTypeADA, Role: RoleDRep},
	{Purpose: PurposeStandard, CoinType: CoinTypeADA, Role: RoleCommitteeCold},
}

// TestSignBip32MultiPath signs with four distinct derivation paths and
// verifies one valid witness per path, in path order, with distinct keys.
func TestSignBip32MultiPath(t *testing.T) {
	h, err := NewBip32(testEntropy, []byte("password"), provider("password"))
	require.NoError(t, err)

	txn := testTransaction()
	id, err := txn.ID()
	require.NoError(t, err)

	set, err := h.SignBip32(txn, signingPaths)
	require.NoError(t, err)
	require.Equal(t, len(signingPaths), set.Len())

	seen := make(map[string]struct{})
	for i := 0; i < set.Len(); i++ {
		w := set.At(i)
		require.True(t, w.Verify(id), "witness %d", i)

		_, dup := seen[string(w.PubKey)]
		require.False(t, dup, "witness %d reused a key", i)
		seen[string(w.PubKey)] = struct{}{}
	}
}

// TestSignBip32KnownVectors pins the exact bytes of the four-path signing
// scenario: the transaction identifier, the account extended public key,
// and each witness.  Any change to the entropy stretch, the child
// derivation scheme, or the signing construction shows up here even when
// the signatures still verify.
func TestSignBip32KnownVectors(t *testing.T) {
	wantID := "a0fe5382fbd3a18d2cf6a35f503d430f8477d9e73cd2b2525b1c16a891f42aa2"
	wantXPub := "af9226608fdd3066a91ec98974015fcfb0c1b3b316d6ab44762819f120" +
		"85ec96a5599317eab90977befa81fb8ed5babb1d7c83439d3b60f3f85480eaf7cd7125"
	wantWitnesses := []struct {
		pubKey    string
		signature string
	}{{
		pubKey: "d30aceeec8653919c2c2178af2555d0d43139be9fc097f2484f76c844db6000c",
		signature: "15dc7970dda4d94580705d034805874563ad7fb975715acf78215f0fb17e95a5" +
			"9b8e2c2035dd12df5f9ffda1bf6ccd1cf57f27d39a9c4e79bdd9d436c306ff0b",
	}, {
		pubKey: "f7e1faa838b079a73b68cf6229b8e9b433a87fc42c486ca8a0b8986e1e63ddd7",
		signature: "6fb420e2b2111db60e9056433b57e6cbca3f54a21b076e4b0bf6ee300b9e6b12" +
			"c1893fe4ffdef636a0c9e2a3bb7f7129f636cb3c64816eeae5df728521ded50d",
	}, {
		pubKey: "1001cc2d42f9fa94192b03f02e38ffe089ea6cb5fda566ba39d840796deb6ac1",
		signature: "eaedfce38105128590409afbcc4029580e47aadc82270b577776a9f992d63e27" +
			"dc8669bb8c61b69951fe46fe9cb43b9549dc4be8a1c93ba53c0d933909ebe509",
	}, {
		pubKey: "fdadc959188616eb1dfb568208d30e973c0ed4192f276945914798897b3e9efc",
		signature: "58ec728c56f10a1c44033e8c20b9f4863e51a073fe577f0c087f0505716f7dac" +
			"adef3ac646cf630b87b297584dda55f9cdf10cb2d1b4a1c9db09ab1c1400ed06",
	}}

	h, err := NewBip32(testEntropy, []byte("password"), provider("password"))
	require.NoError(t, err)

	txn := testTransaction()
	id, err := txn.ID()
	require.NoError(t, err)
	require.Equal(t, wantID, hex.EncodeToString(id[:]))

	accountPub, err := h.AccountPublicKey(AccountPath{
		Purpose: PurposeStandard, CoinType: CoinTypeADA,
	})
	require.NoError(t, err)
	require.Equal(t, wantXPub, hex.EncodeToString(accountPub.Bytes()))

	set, err := h.SignBip32(txn, signingPaths)
	require.NoError(t, err)
	require.Equal(t, len(wantWitnesses), set.Len())

	for i, want := range wantWitnesses {
		w := set.At(i)
		require.Equal(t, want.pubKey, hex.EncodeToString(w.PubKey),
			"witness %d", i)
		require.Equal(t, want.signature, hex.EncodeToString(w.Signature),
			"witness %d", i)
	}
}

// TestSignBip32Deterministic ensures the same paths, handler, and
// transaction produce byte-identical witnesses across calls.
func TestSignBip32Deterministic(t *testing.T) {
	h, err := NewBip32(testEntropy, []byte("password"), provider("password"))
	require.NoError(t, err)

	first, err := h.SignBip32(testTransaction(), signingPaths)
	require.NoError(t, err)
	second, err := h.SignBip32(testTransaction(), signingPaths)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	for i := 0; i < first.Len(); i++ {
		require.Equal(t, first.At(i), second.At(i), "witness %d", i)
	}
}

// TestSignBip32MatchesAccountPublicKey ensures the witness key for an
// external path is the soft-derived child of the exported account xpub,
// tying the signer and the discovery surface together.
func TestSignBip32MatchesAccountPublicKey(t *testing.T) {
	h, err := NewBip32(testEntropy, []byte("password"), provider("password"))
	require.NoError(t, err)

	accountPub, err := h.AccountPublicKey(AccountPath{
		Purpose: PurposeStandard, CoinType: CoinTypeADA,
	})
	require.NoError(t, err)

	rolePub, err := accountPub.Child(RoleExternal)
	require.NoError(t, err)
	leafPub, err := rolePub.Child(7)
	require.NoError(t, err)

	set, err := h.SignBip32(testTransaction(), []DerivationPath{{
		Purpose: PurposeStandard, CoinType: CoinTypeADA,
		Role: RoleExternal, Index: 7,
	}})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	require.Equal(t, []byte(leafPub.PubKey()), set.At(0).PubKey)
}

// TestSignBip32EmptyPaths ensures a zero-length path list yields an empty
// witness set, not an error.
func TestSignBip32EmptyPaths(t *testing.T) {
	h, err := NewBip32(testEntropy, []byte("password"), provider("password"))
	require.NoError(t, err)

	set, err := h.SignBip32(testTransaction(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, set.Len())
}

// TestSignBip32PassphraseGating ensures a declining passphrase provider
// aborts signing with ErrWrongPassphrase and no witness set.
func TestSignBip32PassphraseGating(t *testing.T) {
	h, err := NewBip32(testEntropy, []byte("password"), declined)
	require.NoError(t, err)

	set, err := h.SignBip32(testTransaction(), signingPaths)
	require.True(t, IsError(err, ErrWrongPassphrase))
	require.Nil(t, set)
}

// TestSignBip32VariantMismatch ensures the hierarchical signer rejects a
// single-key handler.
func TestSignBip32VariantMismatch(t *testing.T) {
	h, err := NewEd25519(make([]byte, 32), []byte("password"),
		provider("password"))
	require.NoError(t, err)

	_, err = h.SignBip32(testTransaction(), signingPaths)
	require.True(t, IsError(err, ErrInvalidArgument))
}

// TestSignEd25519 ensures the single-key signer produces exactly one valid
// witness matching the standard library for seed-form keys.
func TestSignEd25519(t *testing.T) {
	seed := bytes.Repeat([]byte{0x2b}, ed25519.SeedSize)
	h, err := NewEd25519(seed, []byte("password"), provider("password"))
	require.NoError(t, err)

	txn := testTransaction()
	id, err := txn.ID()
	require.NoError(t, err)

	set, err := h.SignEd25519(txn)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	w := set.At(0)
	require.True(t, w.Verify(id))

	stdKey := ed25519.NewKeyFromSeed(seed)
	require.Equal(t, ed25519.Sign(stdKey, id[:]), w.Signature)
}

// TestSignEd25519NormalExtendedEquivalence ensures a 32-byte key and its
// 64-byte expansion sign the same transaction identically.
func TestSignEd25519NormalExtendedEquivalence(t *testing.T) {
	seed := bytes.Repeat([]byte{0x4d}, ed25519.SeedSize)

	expanded := sha512.Sum512(seed)
	expanded[0] &= 0xf8
	expanded[31] &= 0x7f
	expanded[31] |= 0x40

	normal, err := NewEd25519(seed, []byte("password"), provider("password"))
	require.NoError(t, err)
	extended, err := NewEd25519(expanded[:], []byte("password"),
		provider("password"))
	require.NoError(t, err)

	txn := testTransaction()
	normalSet, err := normal.SignEd25519(txn)
	require.NoError(t, err)
	extendedSet, err := extended.SignEd25519(txn)
	require.NoError(t, err)

	require.Equal(t, normalSet.At(0), extendedSet.At(0))
}

// TestSignEd25519PassphraseGating ensures the single-key signer is gated
// the same way as the hierarchical one.
func TestSignEd25519PassphraseGating(t *testing.T) {
	h, err := NewEd25519(make([]byte, 32), []byte("password"), declined)
	require.NoError(t, err)

	set, err := h.SignEd25519(testTransaction())
	require.True(t, IsError(err, ErrWrongPassphrase))
	require.Nil(t, set)
}

// TestApplyWitnessesAfterSigning merges the witness sets from both signer
// variants into one transaction, preserving both.
func TestApplyWitnessesAfterSigning(t *testing.T) {
	bip32Handler, err := NewBip32(testEntropy, []byte("password"),
		provider("password"))
	require.NoError(t, err)
	rawHandler, err := NewEd25519(make([]byte, 32), []byte("password"),
		provider("password"))
	require.NoError(t, err)

	txn := testTransaction()

	hdSet, err := bip32Handler.SignBip32(txn, signingPaths[:2])
	require.NoError(t, err)
	require.NoError(t, tx.ApplyVKeyWitnesses(txn, hdSet))

	rawSet, err := rawHandler.SignEd25519(txn)
	require.NoError(t, err)
	require.NoError(t, tx.ApplyVKeyWitnesses(txn, rawSet))

	require.Equal(t, 3, txn.Witnesses().Len())
}
