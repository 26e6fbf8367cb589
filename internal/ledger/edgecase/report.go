package edgecase

import "github.com/odyssey-erp/odyssey-ledger/internal/ledger"

// Report is an ordered set of flags. Adding an identical flag twice keeps the first.
type Report struct {
	flags []ledger.Flag
	seen  map[ledger.Flag]struct{}
}

// NewReport builds a report from flags, collapsing duplicates.
func NewReport(flags ...ledger.Flag) Report {
	var r Report
	r.Add(flags...)
	return r
}

// Add appends flags not already present.
func (r *Report) Add(flags ...ledger.Flag) {
	for _, f := range flags {
		if r.seen == nil {
			r.seen = make(map[ledger.Flag]struct{})
		}
		if _, dup := r.seen[f]; dup {
			continue
		}
		r.seen[f] = struct{}{}
		r.flags = append(r.flags, f)
	}
}

// Merge appends the flags of other in order.
func (r *Report) Merge(other Report) {
	r.Add(other.flags...)
}

// Flags returns a copy of the flags in insertion order.
func (r Report) Flags() []ledger.Flag {
	if len(r.flags) == 0 {
		return nil
	}
	out := make([]ledger.Flag, len(r.flags))
	copy(out, r.flags)
	return out
}

// Len returns the number of distinct flags.
func (r Report) Len() int { return len(r.flags) }

// Empty reports whether nothing was flagged.
func (r Report) Empty() bool { return len(r.flags) == 0 }

// Has reports whether any flag of the given type is present.
func (r Report) Has(t ledger.FlagType) bool {
	for _, f := range r.flags {
		if f.Type == t {
			return true
		}
	}
	return false
}

// OfType returns the flags with the given type.
func (r Report) OfType(t ledger.FlagType) []ledger.Flag {
	var out []ledger.Flag
	for _, f := range r.flags {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

// RequiresApproval ORs RequiresApproval over the report.
func (r Report) RequiresApproval() bool {
	return ledger.AnyRequiresApproval(r.flags)
}
