// internal/ledger/open.go
package ledger

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ntptrace/trace-backend/internal/config"
)

// Open connects to the configured contract. Without an RPC endpoint it
// returns a static development ledger seeded from DevRoles. The returned func
// releases the connection.
func Open(ctx context.Context, cfg config.BlockchainConfig) (Client, func(), error) {
	if cfg.RPC_URL != "" {
		eth, err := DialEthereum(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return eth, eth.Close, nil
	}

	grants, err := ParseGrants(cfg.DevRoles)
	if err != nil {
		return nil, nil, err
	}

	client := NewStaticClient()
	client.SetAutoAnchor(true)
	for principal, roles := range grants {
		client.Grant(principal, roles...)
	}

	logrus.WithField("principals", len(grants)).Warn("BLOCKCHAIN_RPC_URL not set, using static development ledger")
	return client, func() {}, nil
}
