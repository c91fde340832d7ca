// internal/ledger/signature.go
package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidSignature = errors.New("invalid signature")

// RecoverSigner returns the account that produced a personal_sign signature
// over message. Wallets emit V as 27/28; both that and the raw 0/1 form are
// accepted.
func RecoverSigner(message, signature string) (Principal, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}

	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return Principal(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// VerifySignature reports whether signature over message was made by principal.
func VerifySignature(principal Principal, message, signature string) error {
	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return err
	}
	if signer != principal {
		return fmt.Errorf("%w: signed by %s, not %s", ErrInvalidSignature, signer, principal)
	}
	return nil
}
