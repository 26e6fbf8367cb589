package edgecase

import "github.com/odyssey-erp/odyssey-ledger/internal/ledger"

// Route is the gate's routing decision.
type Route string

const (
	RoutePost   Route = "post"
	RoutePark   Route = "park"
	RouteReview Route = "review"
)

// Decision carries the route and the flags that justify it.
type Decision struct {
	Route            Route         `json:"route"`
	RequiresApproval bool          `json:"requires_approval"`
	Flags            []ledger.Flag `json:"flags"`
}

// Gate turns a report into a routing decision. Parking is a result, not an error.
func Gate(report Report, immediate bool) Decision {
	d := Decision{RequiresApproval: report.RequiresApproval(), Flags: report.Flags()}
	switch {
	case !immediate:
		d.Route = RouteReview
	case d.RequiresApproval:
		d.Route = RoutePark
	default:
		d.Route = RoutePost
	}
	return d
}

// ApprovalRequest builds the record needed to open an approval for a parked transaction.
func (d Decision) ApprovalRequest(tx ledger.Transaction, requestedBy int64) ledger.ApprovalRequest {
	return ledger.ApprovalRequest{
		CompanyID:   tx.CompanyID,
		Type:        ledger.ApprovalTransactionPosting,
		EntityType:  ledger.EntityTransaction,
		EntityID:    tx.ID,
		Reason:      d.Flags,
		RequestedBy: requestedBy,
	}
}
