package keymgr

import (
	"github.com/adasuite/adawallet/hdkeychain"
)

// The hierarchy used for account discovery follows the BIP0044 template
// extended with per-role branches:
//
//	m/<purpose>'/<coin type>'/<account>'/<role>/<index>
//
// The purpose, coin type, and account components are always hardened; the
// role and index components never are.
const (
	// PurposeStandard is the purpose index for standard single-signature
	// accounts.
	PurposeStandard uint32 = 1852

	// PurposeMultiSig is the purpose index for shared multi-signature
	// accounts.
	PurposeMultiSig uint32 = 1854

	// CoinTypeADA is the registered coin type of the chain.
	CoinTypeADA uint32 = 1815
)

// Role selects the branch of an account a key belongs to.
const (
	// RoleExternal is the branch for payment addresses handed out to
	// other parties.
	RoleExternal uint32 = 0

	// RoleInternal is the branch for change addresses.
	RoleInternal uint32 = 1

	// RoleStaking is the branch for stake credential keys.
	RoleStaking uint32 = 2

	// RoleDRep is the branch for delegate representative keys.
	RoleDRep uint32 = 3

	// RoleCommitteeCold is the branch for constitutional committee cold
	// keys.
	RoleCommitteeCold uint32 = 4
)

// DerivationPath addresses one leaf signing key in the hierarchy.  The
// purpose, coin type, and account components are given unhardened; the
// derivation below applies hardening to them.
type DerivationPath struct {
	Purpose  uint32
	CoinType uint32
	Account  uint32
	Role     uint32
	Index    uint32
}

// AccountPath addresses an account-level node in the hierarchy, the
// deepest level whose extended public key can be exported for address
// discovery without exposing per-role keys.
type AccountPath struct {
	Purpose  uint32
	CoinType uint32
	Account  uint32
}

// hardened maps an index into the hardened key range.
func hardened(index uint32) uint32 {
	return hdkeychain.HardenedKeyStart + index
}

// deriveAccountKey walks the master key down to the hardened account
// level.  Intermediate keys are zeroed before return; the caller owns the
// returned key.
func deriveAccountKey(master *hdkeychain.ExtendedKey,
	path AccountPath) (*hdkeychain.ExtendedKey, error) {

	key := master
	for _, index := range []uint32{
		hardened(path.Purpose), hardened(path.CoinType),
		hardened(path.Account),
	} {
		child, err := key.Child(index)
		if key != master {
			key.Zero()
		}
		if err != nil {
			return nil, keyringError(ErrCrypto,
				"failed to derive account key", err)
		}
		key = child
	}
	return key, nil
}

// deriveSigningKey resolves a full derivation path to the leaf signing
// key.  Intermediate keys are zeroed before return; the caller owns the
// returned key and must zero it after use.
func deriveSigningKey(master *hdkeychain.ExtendedKey,
	path DerivationPath) (*hdkeychain.ExtendedKey, error) {

	account, err := deriveAccountKey(master, AccountPath{
		Purpose:  path.Purpose,
		CoinType: path.CoinType,
		Account:  path.Account,
	})
	if err != nil {
		return nil, err
	}
	defer account.Zero()

	role, err := account.Child(path.Role)
	if err != nil {
		return nil, keyringError(ErrCrypto,
			"failed to derive role key", err)
	}
	defer role.Zero()

	leaf, err := role.Child(path.Index)
	if err != nil {
		return nil, keyringError(ErrCrypto,
			"failed to derive signing key", err)
	}
	return leaf, nil
}
