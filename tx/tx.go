// Package tx defines the transaction surface the signing code consumes: a
// content-addressed transaction identifier and a mutable verification-key
// witness set.  The wire encoding of transaction bodies is owned by the
// caller; this package only hashes the canonical bytes it is handed.
package tx

import (
	"crypto/ed25519"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of a transaction identifier.
const HashSize = 32

// Hash is a Blake2b-256 digest of a transaction's canonical body encoding.
// It is the message that verification-key witnesses sign.
type Hash [HashSize]byte

var (
	// ErrNilTransaction describes a nil transaction collaborator.
	ErrNilTransaction = errors.New("transaction is nil")

	// ErrBadWitness describes a witness whose key or signature has the
	// wrong length.
	ErrBadWitness = errors.New("witness has malformed key or signature")
)

// Transaction is the collaborator contract the signer requires: a stable
// identifier and a mutation point for the verification-key witness set.
type Transaction interface {
	// ID returns the content-addressed transaction identifier.
	ID() (Hash, error)

	// Witnesses returns the current verification-key witness set, which
	// may be nil when no witness has been applied yet.
	Witnesses() *VKeyWitnessSet

	// SetWitnesses replaces the transaction's witness set.
	SetWitnesses(*VKeyWitnessSet)
}

// VKeyWitness pairs an Ed25519 public key with its signature over a
// transaction identifier, proving authorization by the key holder.
type VKeyWitness struct {
	PubKey    []byte
	Signature []byte
}

// Verify checks the witness signature against the given transaction
// identifier.
func (w *VKeyWitness) Verify(id Hash) bool {
	if len(w.PubKey) != ed25519.PublicKeySize ||
		len(w.Signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(w.PubKey, id[:], w.Signature)
}

// VKeyWitnessSet is an ordered collection of verification-key witnesses.
// Order is preserved as witnesses are added, one per signing identity in
// request order.
type VKeyWitnessSet struct {
	witnesses []VKeyWitness
}

// NewVKeyWitnessSet returns an empty witness set.
func NewVKeyWitnessSet() *VKeyWitnessSet {
	return &VKeyWitnessSet{}
}

// Add appends a witness to the set.
func (s *VKeyWitnessSet) Add(w VKeyWitness) error {
	if len(w.PubKey) != ed25519.PublicKeySize ||
		len(w.Signature) != ed25519.SignatureSize {
		return ErrBadWitness
	}
	s.witnesses = append(s.witnesses, w)
	return nil
}

// Len returns the number of witnesses in the set.
func (s *VKeyWitnessSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.witnesses)
}

// At returns the witness at index i in insertion order.
func (s *VKeyWitnessSet) At(i int) VKeyWitness {
	return s.witnesses[i]
}

// ApplyVKeyWitnesses merges newly produced witnesses into the
// transaction's existing witness set rather than overwriting it.  A
// transaction without a set gets a fresh one allocated; a nil or empty new
// set is tolerated and leaves the transaction unchanged apart from that
// allocation.
func ApplyVKeyWitnesses(t Transaction, set *VKeyWitnessSet) error {
	if t == nil {
		return ErrNilTransaction
	}

	existing := t.Witnesses()
	if existing == nil {
		existing = NewVKeyWitnessSet()
	}
	if set != nil {
		for i := 0; i < set.Len(); i++ {
			if err := existing.Add(set.At(i)); err != nil {
				return err
			}
		}
	}
	t.SetWitnesses(existing)
	return nil
}

// RawTransaction is a minimal Transaction over an opaque, already canonical
// body encoding.  It is what callers without a full transaction builder
// hand to the signer.
type RawTransaction struct {
	body      []byte
	witnesses *VKeyWitnessSet
}

// NewRawTransaction wraps the canonical body bytes of a transaction.
func NewRawTransaction(body []byte) *RawTransaction {
	return &RawTransaction{body: body}
}

// ID returns the Blake2b-256 digest of the body.
func (t *RawTransaction) ID() (Hash, error) {
	return blake2b.Sum256(t.body), nil
}

// Witnesses returns the applied witness set, nil before the first apply.
func (t *RawTransaction) Witnesses() *VKeyWitnessSet {
	return t.witnesses
}

// SetWitnesses replaces the witness set.
func (t *RawTransaction) SetWitnesses(set *VKeyWitnessSet) {
	t.witnesses = set
}
