package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/factory"
)

// =============================================================================
// TASK DEFINITIONS - Legacy and new JSON shapes
// =============================================================================

func TestParseTaskDefinitions_NewShape(t *testing.T) {
	f := factory.NewFactory()

	defs, err := f.ParseTaskDefinitions(`[
		{"text": "Close out the register", "is_mandatory": true},
		{"text": "Restock the display fridge", "amount": "7.50", "requires_media": true}
	]`)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "Close out the register", defs[0].Text)
	assert.True(t, defs[0].Mandatory)
	assert.True(t, defs[0].Amount.IsZero(), "omitted amount defaults to zero")
	assert.False(t, defs[0].RequiresMedia)

	assert.False(t, defs[1].Mandatory)
	assert.True(t, defs[1].Amount.Equal(core.NewMoney(7.50)))
	assert.True(t, defs[1].RequiresMedia)
}

func TestParseTaskDefinitions_LegacyShape(t *testing.T) {
	// Old stored configurations use task/required/price/photo with the
	// price as a JSON number.
	f := factory.NewFactory()

	defs, err := f.ParseTaskDefinitions(`[
		{"task": "Mop the floor", "required": true, "price": 25.5, "photo": true}
	]`)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	assert.Equal(t, "Mop the floor", defs[0].Text)
	assert.True(t, defs[0].Mandatory)
	assert.True(t, defs[0].Amount.Equal(core.NewMoney(25.50)))
	assert.True(t, defs[0].RequiresMedia)
}

func TestParseTaskDefinitions_ShapeDetectedPerElement(t *testing.T) {
	f := factory.NewFactory()

	defs, err := f.ParseTaskDefinitions(`[
		{"task": "Legacy task", "price": 5},
		{"text": "New task", "amount": "6.00"}
	]`)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "Legacy task", defs[0].Text)
	assert.Equal(t, "New task", defs[1].Text)
}

func TestParseTaskDefinitions_NewFieldsWinOnMixedElement(t *testing.T) {
	f := factory.NewFactory()

	defs, err := f.ParseTaskDefinitions(`[{"text": "Current", "task": "Stale"}]`)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Current", defs[0].Text)
}

func TestParseTaskDefinitions_MissingTextRejected(t *testing.T) {
	f := factory.NewFactory()

	_, err := f.ParseTaskDefinitions(`[{"is_mandatory": true}]`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestParseTaskDefinitions_EmptyInput(t *testing.T) {
	f := factory.NewFactory()

	defs, err := f.ParseTaskDefinitions("")
	require.NoError(t, err)
	assert.Nil(t, defs)
}

func TestMarshalTaskDefinitions_RoundTripsThroughNewShape(t *testing.T) {
	f := factory.NewFactory()
	defs := []core.TaskDefinition{
		{Text: "Close out the register", Mandatory: true},
		{Text: "Restock the display fridge", Amount: core.NewMoney(7.50), RequiresMedia: true},
	}

	stored, err := f.MarshalTaskDefinitions(defs)
	require.NoError(t, err)
	assert.Contains(t, stored, `"is_mandatory"`, "storage always uses the new shape")

	back, err := f.ParseTaskDefinitions(stored)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, defs[0].Text, back[0].Text)
	assert.True(t, back[1].Amount.Equal(defs[1].Amount))
	assert.True(t, back[1].RequiresMedia)
}

func TestMarshalTaskDefinitions_EmptyYieldsEmptyString(t *testing.T) {
	f := factory.NewFactory()
	stored, err := f.MarshalTaskDefinitions(nil)
	require.NoError(t, err)
	assert.Equal(t, "", stored)
}

// =============================================================================
// SCHEDULES
// =============================================================================

func TestParseSchedule_Weekly(t *testing.T) {
	f := factory.NewFactory()

	schedule, err := f.ParseSchedule(`{
		"id": "sched-weekly", "owner_id": "owner-1", "name": "Weekly Friday",
		"frequency": "weekly", "payment_weekday": 5,
		"start_offset": -11, "end_offset": -5
	}`)
	require.NoError(t, err)

	assert.Equal(t, core.ScheduleID("sched-weekly"), schedule.ID)
	assert.Equal(t, core.FrequencyWeekly, schedule.Frequency)
	assert.Equal(t, 5, schedule.PaymentWeekday)
	assert.True(t, schedule.Active, "active defaults to true")
}

func TestParseSchedule_MonthlyInstancesGetIDs(t *testing.T) {
	f := factory.NewFactory()

	schedule, err := f.ParseSchedule(`{
		"owner_id": "owner-1", "frequency": "monthly",
		"instances": [
			{"next_payment_date": "2025-11-10", "anchor_day": 10, "start_offset": -40, "end_offset": -10}
		]
	}`)
	require.NoError(t, err)

	assert.NotEmpty(t, schedule.ID, "missing schedule id is generated")
	require.Len(t, schedule.Instances, 1)
	assert.NotEmpty(t, schedule.Instances[0].ID, "missing instance id is generated")
	assert.Equal(t, 10, schedule.Instances[0].AnchorDay)
	assert.True(t, schedule.Instances[0].NextPaymentDate.Equal(core.NewDate(2025, 11, 10)))
}

func TestParseSchedule_LegacyMonthly(t *testing.T) {
	f := factory.NewFactory()

	schedule, err := f.ParseSchedule(`{
		"owner_id": "owner-1", "frequency": "monthly",
		"payment_day": 10, "start_offset": -9, "end_offset": 0
	}`)
	require.NoError(t, err)
	assert.Equal(t, 10, schedule.PaymentDay)
	assert.Empty(t, schedule.Instances)
}

func TestParseSchedule_ValidationApplied(t *testing.T) {
	f := factory.NewFactory()

	cases := map[string]string{
		"bad weekday":     `{"frequency": "weekly", "payment_weekday": 9, "start_offset": -7, "end_offset": -1}`,
		"positive offset": `{"frequency": "weekly", "payment_weekday": 5, "start_offset": -7, "end_offset": 2}`,
		"bad frequency":   `{"frequency": "fortnightly"}`,
		"bad instance":    `{"frequency": "monthly", "instances": [{"next_payment_date": "soon"}]}`,
	}
	for name, input := range cases {
		_, err := f.ParseSchedule(input)
		assert.Error(t, err, name)
	}
}

func TestParseSchedule_ExplicitInactive(t *testing.T) {
	f := factory.NewFactory()

	schedule, err := f.ParseSchedule(`{
		"frequency": "weekly", "payment_weekday": 5,
		"start_offset": -11, "end_offset": -5, "active": false
	}`)
	require.NoError(t, err)
	assert.False(t, schedule.Active)
}

func TestInstances_StorageRoundTrip(t *testing.T) {
	f := factory.NewFactory()
	instances := []core.PaymentInstance{
		{ID: "inst-1", NextPaymentDate: core.NewDate(2025, 11, 10), AnchorDay: 10, StartOffset: -40, EndOffset: -10},
		{ID: "inst-2", NextPaymentDate: core.NewDate(2025, 11, 25), StartOffset: -14, EndOffset: 0},
	}

	stored, err := f.MarshalInstances(instances)
	require.NoError(t, err)

	back, err := f.ParseInstances(stored)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, "inst-1", back[0].ID)
	assert.True(t, back[0].NextPaymentDate.Equal(instances[0].NextPaymentDate))
	assert.Equal(t, -14, back[1].StartOffset)

	empty, err := f.ParseInstances("")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestScheduleToJSON_CarriesEverythingBack(t *testing.T) {
	f := factory.NewFactory()
	schedule := core.PaymentSchedule{
		ID:        "sched-m",
		OwnerID:   "owner-1",
		Name:      "Monthly 10th",
		Active:    true,
		Frequency: core.FrequencyMonthly,
		Instances: []core.PaymentInstance{
			{ID: "inst-1", NextPaymentDate: core.NewDate(2025, 11, 10), AnchorDay: 10, StartOffset: -40, EndOffset: -10},
		},
	}

	sj := f.ScheduleToJSON(schedule)
	back, err := f.FromScheduleJSON(sj)
	require.NoError(t, err)

	assert.Equal(t, schedule.ID, back.ID)
	assert.Equal(t, schedule.Frequency, back.Frequency)
	require.Len(t, back.Instances, 1)
	assert.True(t, back.Instances[0].NextPaymentDate.Equal(core.NewDate(2025, 11, 10)))
	assert.Equal(t, 10, back.Instances[0].AnchorDay)
}
