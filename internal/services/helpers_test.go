package services

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/registry"
)

const (
	alice = ledger.Principal("0x71C7656EC7ab88b098defB751B7401B5f6d8976F")
	bob   = ledger.Principal("0xFABB0ac9d68B0B445fB7357272Ff202C5651694a")
)

func testTxHash(b string) string {
	return "0x" + strings.Repeat(b, 32)
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{SecretKey: "test-secret", SessionTokenTTL: 1},
		Blockchain: config.BlockchainConfig{
			ExplorerURL:       "https://sepolia.etherscan.io",
			CallTimeout:       time.Second,
			CrossValidateHash: true,
		},
		Frontend: config.FrontendConfig{BaseURL: "https://trace.example/"},
	}
}

type predicateAnswer struct {
	holds bool
	err   error
}

// gatedLedger blocks every predicate until the test releases it.
type gatedLedger struct {
	gates   map[ledger.Predicate]chan predicateAnswer
	started atomic.Int32
}

func newGatedLedger() *gatedLedger {
	g := &gatedLedger{gates: make(map[ledger.Predicate]chan predicateAnswer)}
	for _, p := range predicates {
		g.gates[p] = make(chan predicateAnswer, 1)
	}
	return g
}

func (g *gatedLedger) release(p ledger.Predicate, holds bool, err error) {
	g.gates[p] <- predicateAnswer{holds: holds, err: err}
}

func (g *gatedLedger) wait(ctx context.Context, p ledger.Predicate) (bool, error) {
	g.started.Add(1)
	select {
	case a := <-g.gates[p]:
		return a.holds, a.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (g *gatedLedger) IsProducer(ctx context.Context, _ ledger.Principal) (bool, error) {
	return g.wait(ctx, ledger.PredicateProducer)
}

func (g *gatedLedger) IsDistributor(ctx context.Context, _ ledger.Principal) (bool, error) {
	return g.wait(ctx, ledger.PredicateDistributor)
}

func (g *gatedLedger) IsRetailer(ctx context.Context, _ ledger.Principal) (bool, error) {
	return g.wait(ctx, ledger.PredicateRetailer)
}

func (g *gatedLedger) AnchorMetadata(context.Context, string) (models.BlockchainData, uint64, error) {
	return models.BlockchainData{}, 0, ledger.ErrTxNotFound
}

// stuckLedger never answers and ignores cancellation.
type stuckLedger struct {
	unblock chan struct{}
}

func (s *stuckLedger) block() (bool, error) {
	<-s.unblock
	return true, nil
}

func (s *stuckLedger) IsProducer(context.Context, ledger.Principal) (bool, error) {
	return s.block()
}

func (s *stuckLedger) IsDistributor(context.Context, ledger.Principal) (bool, error) {
	return s.block()
}

func (s *stuckLedger) IsRetailer(context.Context, ledger.Principal) (bool, error) {
	return s.block()
}

func (s *stuckLedger) AnchorMetadata(context.Context, string) (models.BlockchainData, uint64, error) {
	<-s.unblock
	return models.BlockchainData{}, 0, nil
}

// countingRegistry records how often lookups reach the backing registry.
type countingRegistry struct {
	registry.Registry
	lookups atomic.Int32
}

func (r *countingRegistry) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	r.lookups.Add(1)
	return r.Registry.FindByID(ctx, id)
}

func (r *countingRegistry) FindByTransaction(ctx context.Context, txHash string) (*models.Certificate, error) {
	r.lookups.Add(1)
	return r.Registry.FindByTransaction(ctx, txHash)
}

// failingRegistry fails every call with err.
type failingRegistry struct {
	registry.Registry
	err error
}

func (r failingRegistry) FindByID(context.Context, string) (*models.Certificate, error) {
	return nil, r.err
}

func (r failingRegistry) FindByTransaction(context.Context, string) (*models.Certificate, error) {
	return nil, r.err
}
