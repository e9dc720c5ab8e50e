package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

type recordingEnqueuer struct{ reasons []string }

func (r *recordingEnqueuer) EnqueueNotifyScan(_ context.Context, reason string) error {
	r.reasons = append(r.reasons, reason)
	return nil
}

func TestHandleStockChanged(t *testing.T) {
	enq := &recordingEnqueuer{}
	hooks := NewHooks(enq, nil)
	ctx := context.Background()

	require.NoError(t, hooks.HandleStockChanged(ctx, inventory.StockChangedEvent{ProductID: 1, Kind: ledger.MovementReceipt, StockAfter: 40, CriticalStock: 10}))
	assert.Empty(t, enq.reasons)

	require.NoError(t, hooks.HandleStockChanged(ctx, inventory.StockChangedEvent{ProductID: 1, Kind: ledger.MovementAdjustment, StockAfter: 10, CriticalStock: 10}))
	assert.Equal(t, []string{ReasonLowStock}, enq.reasons)

	require.Error(t, hooks.HandleStockChanged(ctx, inventory.StockChangedEvent{StockAfter: 0, CriticalStock: 10}))

	var disabled *Hooks
	require.NoError(t, disabled.HandleStockChanged(ctx, inventory.StockChangedEvent{ProductID: 1}))
}
