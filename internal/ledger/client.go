// internal/ledger/client.go
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ntptrace/trace-backend/internal/models"
)

var (
	// ErrUnavailable marks transient failures: timeouts, dial and RPC errors.
	ErrUnavailable   = errors.New("ledger unavailable")
	ErrTxNotFound    = errors.New("transaction not found on ledger")
	ErrInvalidTxHash = errors.New("invalid transaction hash")
)

// Principal is a ledger account address in EIP-55 checksum form.
type Principal string

func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return "", fmt.Errorf("invalid principal address %q", s)
	}
	return Principal(common.HexToAddress(s).Hex()), nil
}

func (p Principal) String() string {
	return string(p)
}

func (p Principal) Address() common.Address {
	return common.HexToAddress(string(p))
}

// Predicate names a capability check against the ledger.
type Predicate string

const (
	PredicateProducer    Predicate = "isProducer"
	PredicateDistributor Predicate = "isDistributor"
	PredicateRetailer    Predicate = "isRetailer"
)

// Role returns the role granted when the predicate holds.
func (p Predicate) Role() models.Role {
	switch p {
	case PredicateProducer:
		return models.RoleProducer
	case PredicateDistributor:
		return models.RoleDistributor
	case PredicateRetailer:
		return models.RoleRetailer
	}
	return models.RoleNone
}

// Client is read access to the supply-chain contract. Implementations must be
// safe for concurrent use.
type Client interface {
	IsProducer(ctx context.Context, principal Principal) (bool, error)
	IsDistributor(ctx context.Context, principal Principal) (bool, error)
	IsRetailer(ctx context.Context, principal Principal) (bool, error)
	// AnchorMetadata returns the anchoring data and block number of a mined
	// transaction.
	AnchorMetadata(ctx context.Context, txHash string) (models.BlockchainData, uint64, error)
}

// Check dispatches a predicate to the matching Client method.
func Check(ctx context.Context, c Client, p Predicate, principal Principal) (bool, error) {
	switch p {
	case PredicateProducer:
		return c.IsProducer(ctx, principal)
	case PredicateDistributor:
		return c.IsDistributor(ctx, principal)
	case PredicateRetailer:
		return c.IsRetailer(ctx, principal)
	}
	return false, fmt.Errorf("unknown predicate %q", p)
}

func ParseTxHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != 66 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidTxHash, s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidTxHash, s)
	}
	return common.HexToHash(s), nil
}
