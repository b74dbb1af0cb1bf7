package hours

import (
	"log/slog"
	"sort"

	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// CONTRACT RESOLVER
// =============================================================================

// OverlapPolicy decides what happens when two contracts claim the same week.
type OverlapPolicy string

const (
	// OverlapFail surfaces an AmbiguousContractOverlapError.
	OverlapFail OverlapPolicy = "fail"
	// OverlapLatest picks the most recently created contract.
	OverlapLatest OverlapPolicy = "latest"
)

func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(s) {
	case OverlapFail, OverlapLatest:
		return OverlapPolicy(s), nil
	case "":
		return OverlapFail, nil
	}
	return "", invalid("unknown overlap policy " + s)
}

// ContractResolver selects the single applicable contract for a week or day.
// Resolution is a pure function of its inputs, so repeated calls over the
// same contracts always agree.
type ContractResolver struct {
	policy OverlapPolicy
	logger *slog.Logger
}

func NewContractResolver(policy OverlapPolicy, logger *slog.Logger) *ContractResolver {
	if policy == "" {
		policy = OverlapFail
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractResolver{policy: policy, logger: logger}
}

// Resolve returns the contract whose week window contains week, or nil when
// the employee has no contract that week.
func (r *ContractResolver) Resolve(contracts []Contract, employee generic.EmployeeID, week generic.Week) (*Contract, error) {
	return r.pick(contracts, employee, week, func(c Contract) bool { return c.CoversWeek(week) })
}

// ResolveDay narrows the week match by the first and last day boundaries,
// so a contract ending on Wednesday and its successor starting on Thursday
// of the same week are not treated as overlapping.
func (r *ContractResolver) ResolveDay(contracts []Contract, employee generic.EmployeeID, day generic.TimePoint) (*Contract, error) {
	return r.pick(contracts, employee, day.Week(), func(c Contract) bool { return c.CoversDay(day) })
}

func (r *ContractResolver) pick(contracts []Contract, employee generic.EmployeeID, week generic.Week, match func(Contract) bool) (*Contract, error) {
	var candidates []Contract
	for _, c := range contracts {
		if c.IsDeleted() || c.EmployeeID != employee || !match(c) {
			continue
		}
		candidates = append(candidates, c)
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return &candidates[0], nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].ID > candidates[j].ID
	})
	ids := make([]generic.ContractID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	r.logger.Warn("overlapping contracts",
		slog.String("employee", string(employee)),
		slog.String("week", week.String()),
		slog.Any("contracts", ids),
		slog.String("policy", string(r.policy)))

	if r.policy == OverlapLatest {
		return &candidates[0], nil
	}
	return nil, &generic.AmbiguousContractOverlapError{EmployeeID: employee, Week: week, Contracts: ids}
}

// EmployeesWithContracts returns the sorted distinct employees of contracts.
func EmployeesWithContracts(contracts []Contract) []generic.EmployeeID {
	seen := make(map[generic.EmployeeID]bool)
	var out []generic.EmployeeID
	for _, c := range contracts {
		if c.IsDeleted() || seen[c.EmployeeID] {
			continue
		}
		seen[c.EmployeeID] = true
		out = append(out, c.EmployeeID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EarliestContractYear returns the first calendar year any live contract
// contributes to, and false when there are none.
func EarliestContractYear(contracts []Contract) (int, bool) {
	year, found := 0, false
	for _, c := range contracts {
		if c.IsDeleted() {
			continue
		}
		y := c.StartDate().Year()
		if !found || y < year {
			year, found = y, true
		}
	}
	return year, found
}

// =============================================================================
// WRITE-TIME VALIDATION
// =============================================================================

// ValidateNoOverlap rejects c when it shares a day with another live contract
// of the same employee. Stores call this before persisting a contract.
func ValidateNoOverlap(existing []Contract, c Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, e := range existing {
		if e.IsDeleted() || e.ID == c.ID || e.EmployeeID != c.EmployeeID {
			continue
		}
		if c.StartDate().BeforeOrEqual(e.EndDate()) && e.StartDate().BeforeOrEqual(c.EndDate()) {
			return &generic.ContractOverlapError{EmployeeID: c.EmployeeID, Contract: c.ID, Existing: e.ID}
		}
	}
	return nil
}
