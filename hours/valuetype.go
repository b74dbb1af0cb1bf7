package hours

import (
	"fmt"
	"strings"

	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// VALUE TYPES
// =============================================================================

// ValueType names one figure the balance calculator can produce. Custom
// types carry the custom extra hours name: "custom_extra_hours:<name>".
type ValueType struct {
	Kind ValueKind
	Name string
}

type ValueKind string

const (
	ValueOverall             ValueKind = "overall"
	ValueBalance             ValueKind = "balance"
	ValueExpectedHours       ValueKind = "expected_hours"
	ValueExtraWork           ValueKind = "extra_work"
	ValueVacationHours       ValueKind = "vacation_hours"
	ValueSickLeave           ValueKind = "sick_leave"
	ValueHoliday             ValueKind = "holiday"
	ValueUnavailable         ValueKind = "unavailable"
	ValueVacationDays        ValueKind = "vacation_days"
	ValueVacationEntitlement ValueKind = "vacation_entitlement"
	ValueCustomExtraHours    ValueKind = "custom_extra_hours"
)

var (
	Overall             = ValueType{Kind: ValueOverall}
	Balance             = ValueType{Kind: ValueBalance}
	ExpectedHours       = ValueType{Kind: ValueExpectedHours}
	ExtraWork           = ValueType{Kind: ValueExtraWork}
	VacationHours       = ValueType{Kind: ValueVacationHours}
	SickLeave           = ValueType{Kind: ValueSickLeave}
	Holiday             = ValueType{Kind: ValueHoliday}
	Unavailable         = ValueType{Kind: ValueUnavailable}
	VacationDays        = ValueType{Kind: ValueVacationDays}
	VacationEntitlement = ValueType{Kind: ValueVacationEntitlement}
)

// StandardValueTypes are the figures frozen for every billing period.
var StandardValueTypes = []ValueType{
	Balance, Overall, ExpectedHours, ExtraWork, VacationHours,
	SickLeave, Holiday, Unavailable, VacationDays, VacationEntitlement,
}

func CustomExtraHoursValue(name string) ValueType {
	return ValueType{Kind: ValueCustomExtraHours, Name: name}
}

func ParseValueType(s string) (ValueType, error) {
	if name, ok := strings.CutPrefix(s, string(ValueCustomExtraHours)+":"); ok {
		if name == "" {
			return ValueType{}, fmt.Errorf("%w: %q", generic.ErrInvalidValueType, s)
		}
		return CustomExtraHoursValue(name), nil
	}
	for _, vt := range StandardValueTypes {
		if string(vt.Kind) == s {
			return vt, nil
		}
	}
	return ValueType{}, fmt.Errorf("%w: %q", generic.ErrInvalidValueType, s)
}

// ParseValueTypes parses a list, failing on the first unknown name.
func ParseValueTypes(names []string) ([]ValueType, error) {
	out := make([]ValueType, 0, len(names))
	for _, n := range names {
		vt, err := ParseValueType(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func (v ValueType) String() string {
	if v.Kind == ValueCustomExtraHours {
		return string(v.Kind) + ":" + v.Name
	}
	return string(v.Kind)
}

// Unit is days for vacation day figures and hours otherwise.
func (v ValueType) Unit() generic.Unit {
	if v.Kind == ValueVacationDays || v.Kind == ValueVacationEntitlement {
		return generic.UnitDays
	}
	return generic.UnitHours
}

func (v ValueType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *ValueType) UnmarshalText(b []byte) error {
	parsed, err := ParseValueType(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
