// internal/ledger/ethereum.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/models"
)

// Role checks are view functions keyed on msg.sender.
const supplyChainABI = `[
	{"type":"function","name":"isProducer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isDistributor","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isRetailer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]}
]`

type backend interface {
	ethereum.ContractCaller
	ethereum.TransactionReader
}

type EthereumClient struct {
	backend  backend
	contract common.Address
	abi      abi.ABI
	close    func()
}

func DialEthereum(ctx context.Context, cfg config.BlockchainConfig) (*EthereumClient, error) {
	if cfg.RPC_URL == "" {
		return nil, errors.New("blockchain RPC URL is not configured")
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPC_URL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, cfg.Network, err)
	}

	client, err := NewEthereumClient(rpc, common.HexToAddress(cfg.ContractAddress))
	if err != nil {
		rpc.Close()
		return nil, err
	}
	client.close = rpc.Close

	logrus.WithFields(logrus.Fields{
		"network":  cfg.Network,
		"contract": cfg.ContractAddress,
	}).Info("Connected to ledger")

	return client, nil
}

func NewEthereumClient(b backend, contract common.Address) (*EthereumClient, error) {
	parsed, err := abi.JSON(strings.NewReader(supplyChainABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	return &EthereumClient{
		backend:  b,
		contract: contract,
		abi:      parsed,
		close:    func() {},
	}, nil
}

func (c *EthereumClient) Close() {
	c.close()
}

func (c *EthereumClient) IsProducer(ctx context.Context, principal Principal) (bool, error) {
	return c.callPredicate(ctx, PredicateProducer, principal)
}

func (c *EthereumClient) IsDistributor(ctx context.Context, principal Principal) (bool, error) {
	return c.callPredicate(ctx, PredicateDistributor, principal)
}

func (c *EthereumClient) IsRetailer(ctx context.Context, principal Principal) (bool, error) {
	return c.callPredicate(ctx, PredicateRetailer, principal)
}

func (c *EthereumClient) callPredicate(ctx context.Context, p Predicate, principal Principal) (bool, error) {
	input, err := c.abi.Pack(string(p))
	if err != nil {
		return false, fmt.Errorf("failed to encode %s: %w", p, err)
	}

	contract := c.contract
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: principal.Address(),
		To:   &contract,
		Data: input,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrUnavailable, p, err)
	}

	values, err := c.abi.Unpack(string(p), out)
	if err != nil {
		return false, fmt.Errorf("failed to decode %s result: %w", p, err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("unexpected %s result length %d", p, len(values))
	}

	result, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s result type %T", p, values[0])
	}
	return result, nil
}

func (c *EthereumClient) AnchorMetadata(ctx context.Context, txHash string) (models.BlockchainData, uint64, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return models.BlockchainData{}, 0, err
	}

	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		return models.BlockchainData{}, 0, classify(err, "receipt")
	}

	tx, _, err := c.backend.TransactionByHash(ctx, hash)
	if err != nil {
		return models.BlockchainData{}, 0, classify(err, "transaction")
	}

	gasPrice := receipt.EffectiveGasPrice
	if gasPrice == nil {
		gasPrice = tx.GasPrice()
	}

	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	return models.BlockchainData{
		BlockHash: receipt.BlockHash.Hex(),
		GasUsed:   receipt.GasUsed,
		GasPrice:  bigString(gasPrice),
		Nonce:     tx.Nonce(),
	}, blockNumber, nil
}

func classify(err error, what string) error {
	if errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("%w: %s", ErrTxNotFound, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, what, err)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
