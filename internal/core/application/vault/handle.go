package vault

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/dappward/walletd/internal/core/domain"
)

// SigningHandle wraps the decrypted signing key of one account. It lives
// only in volatile memory inside the keyring session and must be zeroed via
// Zero when discarded.
type SigningHandle struct {
	accountID string
	address   common.Address
	prv       *ecdsa.PrivateKey
}

// NewSigningHandle returns a handle for the given decrypted key.
func NewSigningHandle(
	accountID string, address common.Address, prv *ecdsa.PrivateKey,
) *SigningHandle {
	return &SigningHandle{accountID: accountID, address: address, prv: prv}
}

// AccountID returns the id of the account the handle signs for.
func (h *SigningHandle) AccountID() string {
	return h.accountID
}

// Address returns the address the handle signs for.
func (h *SigningHandle) Address() common.Address {
	return h.address
}

// SignTransaction signs a transaction for the given chain id.
func (h *SigningHandle) SignTransaction(
	tx *types.Transaction, chainID *big.Int,
) (*types.Transaction, error) {
	if h.prv == nil {
		return nil, domain.ErrWalletLocked
	}
	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, h.prv)
}

// SignPersonalMessage signs an arbitrary message with the EIP-191 personal
// sign prefix.
func (h *SigningHandle) SignPersonalMessage(message []byte) ([]byte, error) {
	if h.prv == nil {
		return nil, domain.ErrWalletLocked
	}
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256([]byte(prefixed))
	sig, err := crypto.Sign(hash, h.prv)
	if err != nil {
		return nil, err
	}
	// legacy v offset expected by eth_sign consumers
	sig[64] += 27
	return sig, nil
}

// SignTypedData signs EIP-712 typed data.
func (h *SigningHandle) SignTypedData(
	typedData apitypes.TypedData,
) ([]byte, error) {
	if h.prv == nil {
		return nil, domain.ErrWalletLocked
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, h.prv)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// Zero discards the key material, to the extent the runtime allows.
func (h *SigningHandle) Zero() {
	if h.prv != nil {
		h.prv.D.SetInt64(0)
		h.prv = nil
	}
}
