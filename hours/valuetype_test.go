package hours_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
)

func TestParseValueType(t *testing.T) {
	for _, vt := range hours.StandardValueTypes {
		got, err := hours.ParseValueType(vt.String())
		require.NoError(t, err)
		assert.Equal(t, vt, got)
	}

	custom, err := hours.ParseValueType("custom_extra_hours:Training")
	require.NoError(t, err)
	assert.Equal(t, hours.CustomExtraHoursValue("Training"), custom)
	assert.Equal(t, generic.UnitHours, custom.Unit())

	for _, bad := range []string{"", "hours", "custom_extra_hours:", "custom_extra_hours"} {
		_, err := hours.ParseValueType(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidValueType, "input %q", bad)
	}
}

func TestParseValueTypes_StopsAtFirstUnknown(t *testing.T) {
	got, err := hours.ParseValueTypes([]string{"balance", " vacation_days "})
	require.NoError(t, err)
	assert.Equal(t, []hours.ValueType{hours.Balance, hours.VacationDays}, got)

	_, err = hours.ParseValueTypes([]string{"balance", "nope"})
	assert.True(t, generic.IsClientError(err))
}

func TestValueType_Units(t *testing.T) {
	assert.Equal(t, generic.UnitDays, hours.VacationDays.Unit())
	assert.Equal(t, generic.UnitDays, hours.VacationEntitlement.Unit())
	assert.Equal(t, generic.UnitHours, hours.Balance.Unit())
}

func TestValueType_JSON(t *testing.T) {
	var out struct {
		Types []hours.ValueType `json:"types"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"types":["overall","custom_extra_hours:On call"]}`), &out))
	assert.Equal(t, []hours.ValueType{hours.Overall, hours.CustomExtraHoursValue("On call")}, out.Types)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"types":["overall","custom_extra_hours:On call"]}`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`{"types":["bogus"]}`), &out))
}
