package edgecase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

func TestGateRoutes(t *testing.T) {
	review := NewReport(ledger.Flag{Type: ledger.FlagDuplicateTransaction, Description: "dup"})
	gating := NewReport(
		ledger.Flag{Type: ledger.FlagBelowThreshold, Description: "near"},
		ledger.Flag{Type: ledger.FlagBackdated, Description: "old", RequiresApproval: true},
	)

	require.Equal(t, RoutePost, Gate(Report{}, true).Route)
	require.Equal(t, RoutePost, Gate(review, true).Route)

	d := Gate(gating, true)
	require.Equal(t, RoutePark, d.Route)
	require.True(t, d.RequiresApproval)
	require.Len(t, d.Flags, 2)

	d = Gate(gating, false)
	require.Equal(t, RouteReview, d.Route)
	require.True(t, d.RequiresApproval)
}

func TestDecisionApprovalRequest(t *testing.T) {
	tx := ledger.Transaction{ID: uuid.New(), CompanyID: 7}
	flag := ledger.Flag{Type: ledger.FlagLargeAmount, RequiresApproval: true, Severity: ledger.SeverityHigh}
	req := Gate(NewReport(flag), true).ApprovalRequest(tx, 42)
	require.Equal(t, ledger.EntityTransaction, req.EntityType)
	require.Equal(t, tx.ID, req.EntityID)
	require.Equal(t, int64(42), req.RequestedBy)
	require.Equal(t, []ledger.Flag{flag}, req.Reason)
	require.Equal(t, ledger.PriorityUrgent, ledger.PriorityFor(req.Reason))
}

func TestReportCollapsesIdenticalFlags(t *testing.T) {
	f := ledger.Flag{Type: ledger.FlagPeriodEnd, Description: "same"}
	r := NewReport(f, f)
	r.Merge(NewReport(f, ledger.Flag{Type: ledger.FlagPeriodEnd, Description: "other"}))
	require.Equal(t, 2, r.Len())
	require.Equal(t, "same", r.Flags()[0].Description)
}
