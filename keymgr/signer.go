package keymgr

import (
	"github.com/adasuite/adawallet/hdkeychain"
	"github.com/adasuite/adawallet/tx"
)

// SignBip32 signs the transaction identifier under each of the given
// derivation paths and returns the witnesses in path order.  The
// identifier is computed once; each path resolves to a child key whose
// plaintext is scoped to this call.  The operation is all-or-nothing: the
// first passphrase or derivation failure aborts the whole call and no
// partial witness set is returned.  An empty path list yields an empty
// witness set, not an error.
func (h *KeyHandler) SignBip32(t tx.Transaction,
	paths []DerivationPath) (*tx.VKeyWitnessSet, error) {

	if h == nil || t == nil {
		return nil, keyringError(ErrNilArgument,
			"key handler and transaction are required", nil)
	}
	if h.variant != VariantBip32 {
		return nil, keyringError(ErrInvalidArgument,
			"handler does not hold hierarchical key material", nil)
	}

	set := tx.NewVKeyWitnessSet()
	if len(paths) == 0 {
		return set, nil
	}

	id, err := t.ID()
	if err != nil {
		return nil, keyringError(ErrCrypto,
			"failed to compute transaction identifier", err)
	}

	err = h.withSecret(func(secret []byte) error {
		master, err := hdkeychain.NewMaster(secret)
		if err != nil {
			return keyringError(ErrCrypto,
				"failed to derive master key", err)
		}
		defer master.Zero()

		for _, path := range paths {
			signingKey, err := deriveSigningKey(master, path)
			if err != nil {
				return err
			}

			witness := tx.VKeyWitness{
				PubKey:    signingKey.PubKey(),
				Signature: signingKey.Sign(id[:]),
			}
			signingKey.Zero()

			if err := set.Add(witness); err != nil {
				return keyringError(ErrCrypto,
					"produced malformed witness", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// SignEd25519 signs the transaction identifier with the single stored
// private key, producing a witness set of exactly one element.  There is
// no path space to iterate.
func (h *KeyHandler) SignEd25519(t tx.Transaction) (*tx.VKeyWitnessSet, error) {
	if h == nil || t == nil {
		return nil, keyringError(ErrNilArgument,
			"key handler and transaction are required", nil)
	}
	if h.variant != VariantEd25519Normal &&
		h.variant != VariantEd25519Extended {

		return nil, keyringError(ErrInvalidArgument,
			"handler does not hold a single Ed25519 key", nil)
	}

	id, err := t.ID()
	if err != nil {
		return nil, keyringError(ErrCrypto,
			"failed to compute transaction identifier", err)
	}

	set := tx.NewVKeyWitnessSet()
	err = h.withSecret(func(secret []byte) error {
		key, err := hdkeychain.NewFromSecret(secret)
		if err != nil {
			return keyringError(ErrCrypto,
				"stored private key is malformed", err)
		}
		defer key.Zero()

		return set.Add(tx.VKeyWitness{
			PubKey:    key.PubKey(),
			Signature: key.Sign(id[:]),
		})
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}
