package ledger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/models"
)

func TestParsePrincipal(t *testing.T) {
	p, err := ParsePrincipal("  0x70997970c51812dc3a010c7d01b50e0d17dc79c8 ")
	require.NoError(t, err)
	assert.Equal(t, Principal("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), p)

	for _, bad := range []string{"", "0x123", "70997970c51812dc3a010c7d01b50e0d17dc79c8", "0xZZ997970c51812dc3a010c7d01b50e0d17dc79c8"} {
		_, err := ParsePrincipal(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTxHash(t *testing.T) {
	_, err := ParseTxHash(txHash)
	assert.NoError(t, err)

	for _, bad := range []string{"", "0xabc", "0x" + string(make([]byte, 64)), "1234567890123456789012345678901234567890123456789012345678901234zz"} {
		_, err := ParseTxHash(bad)
		assert.ErrorIs(t, err, ErrInvalidTxHash, bad)
	}
}

func TestPredicateRole(t *testing.T) {
	assert.Equal(t, models.RoleProducer, PredicateProducer.Role())
	assert.Equal(t, models.RoleDistributor, PredicateDistributor.Role())
	assert.Equal(t, models.RoleRetailer, PredicateRetailer.Role())
	assert.Equal(t, models.RoleNone, Predicate("isConsumer").Role())
}

func TestStaticClient(t *testing.T) {
	c := NewStaticClient()
	c.Grant(alice, models.RoleRetailer)
	ctx := context.Background()

	for p, want := range map[Predicate]bool{
		PredicateProducer:    false,
		PredicateDistributor: false,
		PredicateRetailer:    true,
	} {
		got, err := Check(ctx, c, p, alice)
		require.NoError(t, err)
		assert.Equal(t, want, got, p)
	}

	_, err := Check(ctx, c, Predicate("isConsumer"), alice)
	assert.Error(t, err)

	c.Anchor(txHash, models.BlockchainData{Nonce: 3}, 99)
	data, block, err := c.AnchorMetadata(ctx, txHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), block)
	assert.Equal(t, uint64(3), data.Nonce)

	_, _, err = c.AnchorMetadata(ctx, "0x"+"00"+txHash[4:])
	assert.ErrorIs(t, err, ErrTxNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.IsProducer(cancelled, alice)
	assert.Error(t, err)
}

func TestStaticClientAutoAnchor(t *testing.T) {
	c := NewStaticClient()
	ctx := context.Background()

	_, _, err := c.AnchorMetadata(ctx, txHash)
	require.ErrorIs(t, err, ErrTxNotFound)

	c.SetAutoAnchor(true)
	_, first, err := c.AnchorMetadata(ctx, txHash)
	require.NoError(t, err)
	_, again, err := c.AnchorMetadata(ctx, txHash)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, second, err := c.AnchorMetadata(ctx, "0x"+strings.Repeat("cd", 32))
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	_, _, err = c.AnchorMetadata(ctx, "0x1234")
	assert.ErrorIs(t, err, ErrInvalidTxHash)

	// Case does not change the anchor a hash resolves to.
	mixed := "0x" + strings.Repeat("Ef", 32)
	_, upper, err := c.AnchorMetadata(ctx, mixed)
	require.NoError(t, err)
	_, lower, err := c.AnchorMetadata(ctx, strings.ToLower(mixed))
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
	assert.Equal(t, second+1, upper)
}

func TestStaticClientAnchorIgnoresCase(t *testing.T) {
	c := NewStaticClient()
	c.Anchor("0x"+strings.Repeat("AB", 32), models.BlockchainData{Nonce: 8}, 43)

	data, block, err := c.AnchorMetadata(context.Background(), "0x"+strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, uint64(43), block)
	assert.Equal(t, uint64(8), data.Nonce)
}

func TestParseGrants(t *testing.T) {
	grants, err := ParseGrants("0x70997970c51812dc3a010c7d01b50e0d17dc79c8=Producer; 0x5FbDB2315678afecb367f032d93F642f64180aa3=Retailer|Distributor;")
	require.NoError(t, err)

	assert.Equal(t, []models.Role{models.RoleProducer}, grants[alice])
	assert.Equal(t, []models.Role{models.RoleRetailer, models.RoleDistributor}, grants[Principal(contractAddr.Hex())])

	for _, bad := range []string{"0x70997970c51812dc3a010c7d01b50e0d17dc79c8", "0x123=Producer", "0x70997970c51812dc3a010c7d01b50e0d17dc79c8=Consumer", "0x70997970c51812dc3a010c7d01b50e0d17dc79c8=Admin"} {
		_, err := ParseGrants(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpenWithoutRPC(t *testing.T) {
	client, closeFn, err := Open(context.Background(), config.BlockchainConfig{
		DevRoles: "0x70997970c51812dc3a010c7d01b50e0d17dc79c8=Distributor",
	})
	require.NoError(t, err)
	defer closeFn()

	ok, err := client.IsDistributor(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = client.AnchorMetadata(context.Background(), txHash)
	assert.NoError(t, err)

	_, _, err = Open(context.Background(), config.BlockchainConfig{DevRoles: "bogus"})
	assert.Error(t, err)
}
