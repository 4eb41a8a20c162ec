package pipeline

import (
	"sort"
	"time"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/json"
	"github.com/ajitpratap0/wealthpack/pkg/layout"
)

// Summary is the diagnostic report of a completed run.
type Summary struct {
	RunID  string `json:"run_id"`
	Table  string `json:"table"`
	Target string `json:"target,omitempty"`

	RowsIn  int64 `json:"rows_in"`
	RowsOut int64 `json:"rows_out"`
	// Dropped counts rejected rows by reason (schema, precision)
	Dropped map[string]int64 `json:"dropped"`
	// DroppedFields counts unknown input fields by name
	DroppedFields map[string]int64 `json:"dropped_fields,omitempty"`
	// DefaultedFields counts optional fields set to null, by name
	DefaultedFields map[string]int64 `json:"defaulted_fields,omitempty"`

	SpillRuns    int   `json:"spill_runs"`
	SpilledBytes int64 `json:"spilled_bytes"`
	RowGroups    int   `json:"row_groups"`
	Bytes        int64 `json:"bytes"`

	Plan            *layout.ColumnPlan       `json:"plan,omitempty"`
	PlanFingerprint string                   `json:"plan_fingerprint,omitempty"`
	Stages          map[string]time.Duration `json:"stages,omitempty"`
}

func newSummary(runID, table, target string) *Summary {
	return &Summary{
		RunID:           runID,
		Table:           table,
		Target:          target,
		Dropped:         make(map[string]int64),
		DroppedFields:   make(map[string]int64),
		DefaultedFields: make(map[string]int64),
	}
}

// TotalDropped is the number of rejected rows over all reasons.
func (s *Summary) TotalDropped() int64 {
	var n int64
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Reasons returns the drop reasons in a stable order.
func (s *Summary) Reasons() []string {
	out := make([]string, 0, len(s.Dropped))
	for r := range s.Dropped {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// CheckAccounting verifies that every input row is either written or
// reported as dropped.
func (s *Summary) CheckAccounting() error {
	if s.RowsIn != s.RowsOut+s.TotalDropped() {
		return errors.Newf(errors.ErrorTypeInternal, "row accounting mismatch: %d in, %d out, %d dropped",
			s.RowsIn, s.RowsOut, s.TotalDropped())
	}
	return nil
}

// JSON renders the summary for the CLI.
func (s *Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
