/*
settings.go - Effective-settings resolution up the unit tree

PURPOSE:
  Answers "which rate, payment system, payment schedule, and late-penalty
  rule apply to this shift?" by applying a fixed precedence chain over the
  contract, the work object, and the object's unit ancestry.

PRECEDENCE (highest first, independently per field):
  1. Contract field - only when its "takes precedence" flag is set and the
     field is non-nil (rate and payment system carry flags)
  2. WorkObject's own field, when set
  3. First OrganizationalUnit ancestor (object's unit upward) with the
     field set; a unit with LateInherit contributes no late policy
  4. System default: zero rate, no system, no schedule, LatePolicy{0, 0}

FIELD AVAILABILITY:
  Not every layer carries every field. Contracts have rate + system;
  objects have rate + system + late; units have system + schedule + late.
  The chain simply skips layers that cannot supply a field, so the
  payment schedule always comes from the unit walk (or stays unset).

CYCLE SAFETY:
  Unit trees are validated against cycles at write time (ValidateUnitMove).
  Resolution never needs cycle detection on healthy data but still caps
  the ancestor walk at MaxUnitDepth and fails loudly with
  CycleDetectedError if the cap is hit, so a broken invariant can never
  hang a payroll run.

USAGE:
  resolver := core.SettingsResolver{Units: store}
  eff, err := resolver.Resolve(ctx, contract, object)
  pay := eff.Rate.Mul(hours)

SEE ALSO:
  - period.go: The schedule referenced by EffectiveSettings.ScheduleID
  - payroll/: Consumes effective rate, system, and late policy
*/
package core

import "context"

// MaxUnitDepth caps the ancestor walk. No real tree approaches this; only
// a corrupted parent link can.
const MaxUnitDepth = 64

// =============================================================================
// EFFECTIVE SETTINGS - Result of the precedence chain
// =============================================================================

// SettingSource names the layer a resolved field came from, for the
// read-only settings endpoints and for debugging payroll questions.
type SettingSource string

const (
	SourceContract SettingSource = "contract"
	SourceObject   SettingSource = "object"
	SourceUnit     SettingSource = "unit"
	SourceDefault  SettingSource = "default"
)

// EffectiveSettings is the fully resolved pay configuration for one
// (contract, object) pair. Every field also records where it came from.
type EffectiveSettings struct {
	Rate       Money
	RateSource SettingSource

	SystemID     *SystemID
	SystemSource SettingSource

	ScheduleID     *ScheduleID
	ScheduleSource SettingSource

	Late       LatePolicy
	LateSource SettingSource
}

// =============================================================================
// SETTINGS RESOLVER
// =============================================================================

// UnitLookup is the read access the resolver needs. Stores implement it.
type UnitLookup interface {
	GetUnit(ctx context.Context, id UnitID) (OrganizationalUnit, error)
}

// SettingsResolver applies the precedence chain. It only reads; all
// writes to the tree go through the store with write-time validation.
type SettingsResolver struct {
	Units UnitLookup
}

// Resolve computes the effective settings for a contract working at an
// object. The ancestor walk starts at the object's own unit.
func (r SettingsResolver) Resolve(ctx context.Context, contract Contract, object WorkObject) (EffectiveSettings, error) {
	eff := EffectiveSettings{
		RateSource:     SourceDefault,
		SystemSource:   SourceDefault,
		ScheduleSource: SourceDefault,
		LateSource:     SourceDefault,
	}

	chain, err := r.ancestry(ctx, object.UnitID)
	if err != nil {
		return EffectiveSettings{}, err
	}

	// Rate: contract (flagged) -> object -> default zero.
	switch {
	case contract.RatePrecedence && contract.Rate != nil:
		eff.Rate, eff.RateSource = *contract.Rate, SourceContract
	case object.Rate != nil:
		eff.Rate, eff.RateSource = *object.Rate, SourceObject
	}

	// Payment system: contract (flagged) -> object -> unit walk.
	switch {
	case contract.SystemPrecedence && contract.SystemID != nil:
		eff.SystemID, eff.SystemSource = contract.SystemID, SourceContract
	case object.SystemID != nil:
		eff.SystemID, eff.SystemSource = object.SystemID, SourceObject
	default:
		for _, unit := range chain {
			if unit.SystemID != nil {
				eff.SystemID, eff.SystemSource = unit.SystemID, SourceUnit
				break
			}
		}
	}

	// Payment schedule: unit walk only.
	for _, unit := range chain {
		if unit.ScheduleID != nil {
			eff.ScheduleID, eff.ScheduleSource = unit.ScheduleID, SourceUnit
			break
		}
	}

	// Late policy: object -> unit walk (honoring LateInherit) -> zero.
	switch {
	case object.Late != nil:
		eff.Late, eff.LateSource = *object.Late, SourceObject
	default:
		for _, unit := range chain {
			if unit.Late != nil && !unit.LateInherit {
				eff.Late, eff.LateSource = *unit.Late, SourceUnit
				break
			}
		}
	}

	return eff, nil
}

// EffectiveScheduleForUnit resolves the payment schedule governing a unit:
// the unit's own schedule or the nearest ancestor's. PayrollPeriodBuilder
// uses this to compute governed object sets; descendants of an overridden
// unit follow the override, never the grandparent's schedule.
func (r SettingsResolver) EffectiveScheduleForUnit(ctx context.Context, id UnitID) (*ScheduleID, error) {
	chain, err := r.ancestry(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, unit := range chain {
		if unit.ScheduleID != nil {
			return unit.ScheduleID, nil
		}
	}
	return nil, nil
}

// ancestry returns the unit and its ancestors, nearest first, capped at
// MaxUnitDepth.
func (r SettingsResolver) ancestry(ctx context.Context, id UnitID) ([]OrganizationalUnit, error) {
	var chain []OrganizationalUnit
	current := &id
	for depth := 0; current != nil; depth++ {
		if depth >= MaxUnitDepth {
			return nil, &CycleDetectedError{UnitID: id, Depth: MaxUnitDepth}
		}
		unit, err := r.Units.GetUnit(ctx, *current)
		if err != nil {
			return nil, err
		}
		chain = append(chain, unit)
		current = unit.ParentID
	}
	return chain, nil
}

// =============================================================================
// WRITE-TIME TREE VALIDATION
// =============================================================================

// ValidateUnitMove checks that attaching the unit under newParent keeps the
// tree acyclic. Call inside the same transaction that commits the move.
// A nil newParent (move to root) is always valid.
func ValidateUnitMove(ctx context.Context, units UnitLookup, id UnitID, newParent *UnitID) error {
	current := newParent
	for depth := 0; current != nil; depth++ {
		if depth >= MaxUnitDepth {
			return &CycleDetectedError{UnitID: id, Depth: MaxUnitDepth}
		}
		if *current == id {
			return &CycleDetectedError{UnitID: id, Depth: depth}
		}
		unit, err := units.GetUnit(ctx, *current)
		if err != nil {
			return err
		}
		current = unit.ParentID
	}
	return nil
}
