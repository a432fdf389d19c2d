package notarization

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"docnotary/blockchain/types"
	"docnotary/gas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_Legal(t *testing.T) {
	pending := Transaction{ID: "1", Status: StatusPending}

	confirming, err := Transition(pending, Event{Kind: EventSubmitted, TxHash: "0xabc", ExplorerURL: "https://basescan.org/tx/0xabc"})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirming, confirming.Status)
	assert.Equal(t, "0xabc", confirming.TxHash)
	assert.Equal(t, "https://basescan.org/tx/0xabc", confirming.ExplorerURL)
	assert.Equal(t, StatusPending, pending.Status, "input record must not change")

	confirmed, err := Transition(confirming, Event{Kind: EventConfirmed, Receipt: &types.Receipt{BlockNumber: 42, GasUsed: 51000, Success: true}})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Equal(t, uint64(42), confirmed.BlockNumber)
	assert.Equal(t, uint64(51000), confirmed.GasUsed)

	failed, err := Transition(pending, Event{Kind: EventFailed, Err: NewTxError(CategoryUserCancelled, types.ErrUserRejected)})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, CategoryUserCancelled, failed.ErrorCategory)
	assert.Equal(t, "Transaction cancelled by user", failed.Error)
	assert.Equal(t, types.ErrUserRejected.Error(), failed.ErrorDetail)

	failed, err = Transition(confirming, Event{Kind: EventFailed})
	require.NoError(t, err)
	assert.Equal(t, CategoryOther, failed.ErrorCategory)
}

func TestTransition_Illegal(t *testing.T) {
	receipt := &types.Receipt{Success: true}
	cases := []struct {
		from Status
		ev   Event
	}{
		{StatusPending, Event{Kind: EventConfirmed, Receipt: receipt}},
		{StatusConfirming, Event{Kind: EventSubmitted, TxHash: "0x1"}},
		{StatusConfirmed, Event{Kind: EventFailed}},
		{StatusConfirmed, Event{Kind: EventSubmitted, TxHash: "0x1"}},
		{StatusFailed, Event{Kind: EventConfirmed, Receipt: receipt}},
		{StatusFailed, Event{Kind: EventFailed}},
		{StatusPending, Event{Kind: EventSubmitted}},
		{StatusConfirming, Event{Kind: EventConfirmed}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s on %s", tc.ev.Kind, tc.from), func(t *testing.T) {
			tx := Transaction{ID: "1", Status: tc.from}

			next, err := Transition(tx, tc.ev)

			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, tx, next)
		})
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		err       error
		category  Category
		message   string
		retryable bool
	}{
		{fmt.Errorf("%w: Request denied", types.ErrUserRejected), CategoryUserCancelled, "Transaction cancelled by user", false},
		{fmt.Errorf("%w: balance too low", types.ErrInsufficientFunds), CategoryInsufficientFunds, "Insufficient funds for gas fee", false},
		{fmt.Errorf("%w: connection refused", types.ErrNetwork), CategoryNetwork, "Network error. Please check your connection.", true},
		{fmt.Errorf("%w: already notarized", types.ErrReverted), CategoryReverted, "Transaction failed on-chain", true},
		{fmt.Errorf("%w: node down", gas.ErrEstimationFailed), CategoryGas, "Gas estimation failed", true},
		{context.DeadlineExceeded, CategoryTimeout, "Timed out waiting for confirmation", true},
		{context.Canceled, CategoryCancelled, "Submission cancelled", false},
		{errors.New("nonce too low"), CategoryOther, "Transaction failed", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.category), func(t *testing.T) {
			txErr := Categorize(tc.err)

			require.NotNil(t, txErr)
			assert.Equal(t, tc.category, txErr.Category)
			assert.Equal(t, tc.message, txErr.Message)
			assert.Equal(t, tc.retryable, txErr.Retryable())
			assert.ErrorIs(t, txErr, tc.err)
		})
	}

	assert.Nil(t, Categorize(nil))
	wrapped := NewTxError(CategoryTimeout, nil)
	assert.Same(t, wrapped, Categorize(fmt.Errorf("watch: %w", wrapped)))
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))

	stats := ComputeStats([]Transaction{
		{Status: StatusConfirmed},
		{Status: StatusConfirmed},
		{Status: StatusFailed},
		{Status: StatusPending},
	})

	assert.Equal(t, Stats{Total: 4, Pending: 1, Confirmed: 2, Failed: 1, SuccessRate: 50}, stats)
}
