package hours

import (
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// EXTRA-HOURS AGGREGATOR
// =============================================================================

// CustomTypes indexes the custom extra hours definitions known for one
// employee through its links, active or not.
type CustomTypes struct {
	byID   map[generic.CustomExtraHoursID]CustomExtraHours
	active map[generic.CustomExtraHoursID]bool
}

func NewCustomTypes(links []CustomExtraHoursLink) CustomTypes {
	ct := CustomTypes{
		byID:   make(map[generic.CustomExtraHoursID]CustomExtraHours, len(links)),
		active: make(map[generic.CustomExtraHoursID]bool, len(links)),
	}
	for _, l := range links {
		ct.byID[l.Type.ID] = l.Type
		if l.Active {
			ct.active[l.Type.ID] = true
		}
	}
	return ct
}

// ActiveNames returns the names of linked, non-deleted types.
func (ct CustomTypes) ActiveNames() []string {
	var names []string
	for id, t := range ct.byID {
		if ct.active[id] && t.Deleted == nil {
			names = append(names, t.Name)
		}
	}
	return names
}

// Classification says how one entry contributes.
type Classification struct {
	Affects    bool
	Absence    bool
	CustomName string
	Unlinked   bool
	Unknown    bool
}

// ExtraHoursSummary is the per-category breakdown of one day. Absence holds
// vacation, sick leave and holiday hours; CustomAffecting the custom hours
// whose type modifies the balance.
type ExtraHoursSummary struct {
	ByCategory      map[Category]decimal.Decimal
	Custom          map[string]decimal.Decimal
	CustomAffecting decimal.Decimal
	Absence         decimal.Decimal
}

func (s ExtraHoursSummary) Category(c Category) decimal.Decimal {
	return s.ByCategory[c]
}

func (s *ExtraHoursSummary) add(e ExtraHours, c Classification) {
	if s.ByCategory == nil {
		s.ByCategory = make(map[Category]decimal.Decimal)
	}
	s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
	if c.CustomName != "" {
		if s.Custom == nil {
			s.Custom = make(map[string]decimal.Decimal)
		}
		s.Custom[c.CustomName] = s.Custom[c.CustomName].Add(e.Amount)
		if c.Affects {
			s.CustomAffecting = s.CustomAffecting.Add(e.Amount)
		}
	}
	if c.Absence {
		s.Absence = s.Absence.Add(e.Amount)
	}
}

type ExtraHoursAggregator struct {
	logger *slog.Logger
}

func NewExtraHoursAggregator(logger *slog.Logger) *ExtraHoursAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtraHoursAggregator{logger: logger}
}

// Classify decides the bucket of e.
//
// Custom entries whose type is no longer linked to the employee still count:
// the entry was valid when recorded and unlinking only stops new entries.
// Entries whose type is unknown altogether are informational.
func (ag *ExtraHoursAggregator) Classify(e ExtraHours, types CustomTypes) Classification {
	switch e.Category {
	case CategoryExtraWork:
		return Classification{Affects: true}
	case CategoryVacation, CategorySickLeave, CategoryHoliday:
		return Classification{Affects: true, Absence: true}
	case CategoryUnavailable:
		return Classification{}
	case CategoryCustom:
		t, ok := types.byID[e.CustomTypeID]
		if !ok {
			ag.logger.Warn("extra hours reference unknown custom type",
				slog.String("entry", string(e.ID)),
				slog.String("custom_type", string(e.CustomTypeID)))
			return Classification{Unknown: true}
		}
		c := Classification{Affects: t.ModifiesBalance, CustomName: t.Name}
		if !types.active[t.ID] {
			c.Unlinked = true
			ag.logger.Debug("counting entry of unlinked custom type",
				slog.String("entry", string(e.ID)),
				slog.String("custom_type", t.Name))
		}
		return c
	}
	return Classification{Unknown: true}
}

// ByDay sums the live entries of employee inside span, one summary per day
// of span in order. Days without entries hold an empty summary.
func (ag *ExtraHoursAggregator) ByDay(employee generic.EmployeeID, entries []ExtraHours, types CustomTypes, span generic.Period) []ExtraHoursSummary {
	out := make([]ExtraHoursSummary, span.Len())
	for _, e := range entries {
		if e.IsDeleted() || e.EmployeeID != employee || !span.Contains(e.Day()) {
			continue
		}
		out[generic.DaysBetween(span.Start, e.Day())].add(e, ag.Classify(e, types))
	}
	return out
}
