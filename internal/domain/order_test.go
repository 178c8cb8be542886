//go:build unit

package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	t.Parallel()

	order, err := NewOrder(HostSystemAxiell, "mlt-12345-order", []string{"mlt-12345"}, OrderTypeLoan, Receiver{Name: "Kari"}, "https://axiell.example/callback")
	require.NoError(t, err)

	require.Equal(t, OrderStatusNotStarted, order.Status)
	require.Len(t, order.Lines, 1)
	require.Equal(t, "mlt-12345", order.Lines[0].HostItemID)
	require.Equal(t, OrderLineStatusNotStarted, order.Lines[0].Status)
}

func TestNewOrderValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		hostSystem  HostSystem
		hostOrderID string
		lines       []string
		orderType   OrderType
	}{
		{"unknown host system", "KOHA", "o-1", []string{"i-1"}, OrderTypeLoan},
		{"blank host order id", HostSystemAxiell, "  ", []string{"i-1"}, OrderTypeLoan},
		{"no order lines", HostSystemAxiell, "o-1", nil, OrderTypeLoan},
		{"blank line item id", HostSystemAxiell, "o-1", []string{""}, OrderTypeLoan},
		{"unknown order type", HostSystemAxiell, "o-1", []string{"i-1"}, "PREVIEW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewOrder(tt.hostSystem, tt.hostOrderID, tt.lines, tt.orderType, Receiver{}, "")
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSetStatusOnDeletedOrder(t *testing.T) {
	t.Parallel()

	order, err := NewOrder(HostSystemAlma, "o-1", []string{"i-1"}, OrderTypeLoan, Receiver{}, "")
	require.NoError(t, err)

	require.NoError(t, order.SetStatus(OrderStatusDeleted))

	err = order.SetStatus(OrderStatusInProgress)
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestMarkLinePicked(t *testing.T) {
	t.Parallel()

	order, err := NewOrder(HostSystemAxiell, "o-1", []string{"i-1", "i-2"}, OrderTypeLoan, Receiver{}, "")
	require.NoError(t, err)

	require.NoError(t, order.MarkLinePicked("i-1"))
	require.Equal(t, OrderStatusInProgress, order.Status)

	require.NoError(t, order.MarkLinePicked("i-2"))
	require.Equal(t, OrderStatusCompleted, order.Status)
	require.Equal(t, OrderLineStatusPicked, order.Lines[0].Status)
	require.Equal(t, OrderLineStatusPicked, order.Lines[1].Status)
}

func TestMarkLinePickedUnknownLine(t *testing.T) {
	t.Parallel()

	order, err := NewOrder(HostSystemAxiell, "o-1", []string{"i-1"}, OrderTypeLoan, Receiver{}, "")
	require.NoError(t, err)

	err = order.MarkLinePicked("i-99")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, OrderStatusNotStarted, order.Status)
}

func TestSnapshotDoesNotAliasLines(t *testing.T) {
	t.Parallel()

	order, err := NewOrder(HostSystemAxiell, "o-1", []string{"i-1"}, OrderTypeLoan, Receiver{}, "")
	require.NoError(t, err)

	snapshot := order.Snapshot()

	require.NoError(t, order.MarkLinePicked("i-1"))

	require.Equal(t, OrderLineStatusNotStarted, snapshot.Lines[0].Status)
	require.Equal(t, OrderStatusNotStarted, snapshot.Status)
}
