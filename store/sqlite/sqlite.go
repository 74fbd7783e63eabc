/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements core.TxStore using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  units:           Organizational tree with inheritable pay settings
  objects:         Work locations (time zone, closing time, task defaults)
  systems:         Payment systems (hourly vs task-aware)
  schedules:       Payment schedules with monthly instances as JSON
  contracts:       Employee-owner bindings with precedence flags
  entries:         Planned shifts
  shifts:          Actual executions
  tasks:           Per-shift task assignments
  adjustments:     Signed money lines per shift
  payroll_entries: Aggregated statements per employee per period
  events:          Append-only domain event feed
  job_runs:        Batch-run records (scheduler guard)

INVARIANTS IN SCHEMA:
  - idx_shifts_one_active: partial unique index enforcing at most one
    active shift per employee, independent of application code
  - idx_adjustments_auto_key: partial unique index on the automatic
    adjustment natural key (shift, kind, task)
  - payroll_entries UNIQUE(employee_id, period_start, period_end)
  - contracts UNIQUE(owner_id, employee_id)

CONDITIONAL WRITES:
  Status transitions are single UPDATE ... WHERE status IN (...) statements
  checked via RowsAffected, so concurrent workers converge instead of
  double-applying. Multi-write operations go through WithTx; transactions
  are serialized process-wide, which SQLite's single-writer model makes
  the honest choice.

WAL MODE:
  The database opens with WAL (readers don't block), foreign keys on, and
  a busy timeout so short write contention retries instead of failing.

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  coordinator := lifecycle.NewCoordinator(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - core/store.go: Interface definitions
  - core/store/memory.go: In-memory implementation (reference semantics)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/factory"
)

// runner is the query surface shared by *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Store implements core.TxStore using SQLite. Transaction views share the
// struct with q pointing at the open *sql.Tx.
type Store struct {
	db      *sql.DB // nil on transaction views
	q       runner
	txMu    *sync.Mutex
	factory *factory.Factory
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database (tests).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A ":memory:" database exists per connection, so the pool must be
	// capped at one or a fresh connection sees an empty schema.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, q: db, txMu: &sync.Mutex{}, factory: factory.NewFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Organizational units (settings tree)
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		parent_id TEXT,
		system_id TEXT,
		schedule_id TEXT,
		late_threshold_minutes INTEGER,
		late_penalty_per_minute TEXT,
		late_inherit BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_owner ON units(owner_id);
	CREATE INDEX IF NOT EXISTS idx_units_parent ON units(parent_id) WHERE parent_id IS NOT NULL;

	-- Work objects
	CREATE TABLE IF NOT EXISTS objects (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		unit_id TEXT NOT NULL,
		name TEXT NOT NULL,
		timezone TEXT NOT NULL,
		closing TEXT,
		system_id TEXT,
		rate TEXT,
		late_threshold_minutes INTEGER,
		late_penalty_per_minute TEXT,
		task_defaults_json TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_objects_owner ON objects(owner_id);
	CREATE INDEX IF NOT EXISTS idx_objects_unit ON objects(unit_id);

	-- Payment systems
	CREATE TABLE IF NOT EXISTS systems (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_systems_owner ON systems(owner_id);

	-- Payment schedules (monthly instances serialized as JSON)
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		frequency TEXT NOT NULL,
		payment_weekday INTEGER NOT NULL DEFAULT 0,
		start_offset INTEGER NOT NULL DEFAULT 0,
		end_offset INTEGER NOT NULL DEFAULT 0,
		payment_day INTEGER NOT NULL DEFAULT 0,
		instances_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_owner ON schedules(owner_id);
	CREATE INDEX IF NOT EXISTS idx_schedules_active ON schedules(active);

	-- Contracts (one per employee per owner)
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		status TEXT NOT NULL,
		rate TEXT,
		rate_precedence BOOLEAN NOT NULL DEFAULT FALSE,
		system_id TEXT,
		system_precedence BOOLEAN NOT NULL DEFAULT FALSE,
		allowed_objects_json TEXT,
		permissions_json TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(owner_id, employee_id)
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_employee ON contracts(employee_id);

	-- Schedule entries (planned shifts)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		planned_start TEXT NOT NULL,
		planned_end TEXT NOT NULL,
		status TEXT NOT NULL,
		task_list_defined BOOLEAN NOT NULL DEFAULT FALSE,
		task_templates_json TEXT,
		include_object_tasks BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_employee ON entries(employee_id, planned_start);
	CREATE INDEX IF NOT EXISTS idx_entries_object ON entries(object_id);
	CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status);

	-- Shifts (actual executions)
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		entry_id TEXT,
		object_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT,
		status TEXT NOT NULL,
		start_location TEXT,
		end_location TEXT,
		hours TEXT NOT NULL DEFAULT '0',
		base_pay TEXT NOT NULL DEFAULT '0',
		auto_closed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one active shift per employee, system-wide.
	-- Enforced here so no application race can violate it.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_one_active
		ON shifts(employee_id) WHERE status = 'active';

	CREATE INDEX IF NOT EXISTS idx_shifts_object_status ON shifts(object_id, status);
	CREATE INDEX IF NOT EXISTS idx_shifts_employee ON shifts(employee_id, start_at DESC);
	CREATE INDEX IF NOT EXISTS idx_shifts_entry ON shifts(entry_id) WHERE entry_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_shifts_end_at ON shifts(end_at) WHERE end_at IS NOT NULL;

	-- Task assignments
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		shift_id TEXT NOT NULL,
		text TEXT NOT NULL,
		mandatory BOOLEAN NOT NULL DEFAULT FALSE,
		amount TEXT NOT NULL DEFAULT '0',
		requires_media BOOLEAN NOT NULL DEFAULT FALSE,
		source TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TEXT,
		evidence_ref TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_shift ON tasks(shift_id);

	-- Payroll adjustments
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		shift_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		automatic BOOLEAN NOT NULL DEFAULT FALSE,
		task_id TEXT,
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Automatic adjustment natural key: re-runs update, never duplicate.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_adjustments_auto_key
		ON adjustments(shift_id, kind, COALESCE(task_id, '')) WHERE automatic = TRUE;

	CREATE INDEX IF NOT EXISTS idx_adjustments_shift ON adjustments(shift_id);
	CREATE INDEX IF NOT EXISTS idx_adjustments_employee ON adjustments(employee_id);

	-- Payroll entries
	CREATE TABLE IF NOT EXISTS payroll_entries (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		schedule_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		base_amount TEXT NOT NULL DEFAULT '0',
		bonus_amount TEXT NOT NULL DEFAULT '0',
		deduction_amount TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'draft',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, period_start, period_end)
	);

	CREATE INDEX IF NOT EXISTS idx_payroll_owner ON payroll_entries(owner_id);
	CREATE INDEX IF NOT EXISTS idx_payroll_status ON payroll_entries(status);

	-- Domain events (append-only)
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		employee_id TEXT,
		object_id TEXT,
		shift_id TEXT,
		entry_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_occurred ON events(occurred_at);

	-- Job runs (scheduler guard)
	CREATE TABLE IF NOT EXISTS job_runs (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		target_date TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		created INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		errors_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_job_runs_guard ON job_runs(job, target_date, status);
	CREATE INDEX IF NOT EXISTS idx_job_runs_started ON job_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. Transactions are
// serialized process-wide; SQLite allows one writer at a time anyway.
// Nested calls run in the enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(core.Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	view := &Store{q: sqlTx, txMu: s.txMu, factory: s.factory}
	if err := fn(view); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// UNIT STORE
// =============================================================================

func (s *Store) CreateUnit(ctx context.Context, unit core.OrganizationalUnit) error {
	threshold, perMinute := latePolicyColumns(unit.Late)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO units (id, owner_id, name, parent_id, system_id, schedule_id,
			late_threshold_minutes, late_penalty_per_minute, late_inherit, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		unit.ID, unit.OwnerID, unit.Name,
		nullUnitID(unit.ParentID), nullSystemID(unit.SystemID), nullScheduleID(unit.ScheduleID),
		threshold, perMinute, unit.LateInherit, unit.Active, nowRFC3339(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ValidationError{Field: "id", Reason: "unit already exists"}
		}
		return fmt.Errorf("failed to create unit: %w", err)
	}
	return nil
}

func (s *Store) GetUnit(ctx context.Context, id core.UnitID) (core.OrganizationalUnit, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, parent_id, system_id, schedule_id,
			late_threshold_minutes, late_penalty_per_minute, late_inherit, active
		FROM units WHERE id = ?`, id)
	unit, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return core.OrganizationalUnit{}, &core.NotFoundError{Kind: "unit", ID: string(id)}
	}
	return unit, err
}

func (s *Store) UpdateUnit(ctx context.Context, unit core.OrganizationalUnit) error {
	threshold, perMinute := latePolicyColumns(unit.Late)
	res, err := s.q.ExecContext(ctx, `
		UPDATE units SET name = ?, parent_id = ?, system_id = ?, schedule_id = ?,
			late_threshold_minutes = ?, late_penalty_per_minute = ?, late_inherit = ?, active = ?
		WHERE id = ?`,
		unit.Name, nullUnitID(unit.ParentID), nullSystemID(unit.SystemID), nullScheduleID(unit.ScheduleID),
		threshold, perMinute, unit.LateInherit, unit.Active, unit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update unit: %w", err)
	}
	return requireRow(res, "unit", string(unit.ID))
}

func (s *Store) ListUnits(ctx context.Context, owner core.OwnerID) ([]core.OrganizationalUnit, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, owner_id, name, parent_id, system_id, schedule_id,
			late_threshold_minutes, late_penalty_per_minute, late_inherit, active
		FROM units WHERE owner_id = ? ORDER BY name, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []core.OrganizationalUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func scanUnit(sc scanner) (core.OrganizationalUnit, error) {
	var (
		unit      core.OrganizationalUnit
		parentID  sql.NullString
		systemID  sql.NullString
		schedID   sql.NullString
		threshold sql.NullInt64
		perMinute sql.NullString
	)
	err := sc.Scan(&unit.ID, &unit.OwnerID, &unit.Name, &parentID, &systemID, &schedID,
		&threshold, &perMinute, &unit.LateInherit, &unit.Active)
	if err != nil {
		return unit, err
	}
	if parentID.Valid {
		id := core.UnitID(parentID.String)
		unit.ParentID = &id
	}
	if systemID.Valid {
		id := core.SystemID(systemID.String)
		unit.SystemID = &id
	}
	if schedID.Valid {
		id := core.ScheduleID(schedID.String)
		unit.ScheduleID = &id
	}
	unit.Late = latePolicyFromColumns(threshold, perMinute)
	return unit, nil
}

// =============================================================================
// OBJECT STORE
// =============================================================================

func (s *Store) CreateObject(ctx context.Context, object core.WorkObject) error {
	tasksJSON, err := s.factory.MarshalTaskDefinitions(object.TaskDefaults)
	if err != nil {
		return err
	}
	threshold, perMinute := latePolicyColumns(object.Late)
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO objects (id, owner_id, unit_id, name, timezone, closing, system_id, rate,
			late_threshold_minutes, late_penalty_per_minute, task_defaults_json, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		object.ID, object.OwnerID, object.UnitID, object.Name, object.Timezone,
		nullDayTime(object.Closing), nullSystemID(object.SystemID), nullMoney(object.Rate),
		threshold, perMinute, nullString(tasksJSON), object.Active, nowRFC3339(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ValidationError{Field: "id", Reason: "object already exists"}
		}
		return fmt.Errorf("failed to create object: %w", err)
	}
	return nil
}

func (s *Store) GetObject(ctx context.Context, id core.ObjectID) (core.WorkObject, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, unit_id, name, timezone, closing, system_id, rate,
			late_threshold_minutes, late_penalty_per_minute, task_defaults_json, active
		FROM objects WHERE id = ?`, id)
	object, err := s.scanObject(row)
	if err == sql.ErrNoRows {
		return core.WorkObject{}, &core.NotFoundError{Kind: "object", ID: string(id)}
	}
	return object, err
}

func (s *Store) UpdateObject(ctx context.Context, object core.WorkObject) error {
	tasksJSON, err := s.factory.MarshalTaskDefinitions(object.TaskDefaults)
	if err != nil {
		return err
	}
	threshold, perMinute := latePolicyColumns(object.Late)
	res, err := s.q.ExecContext(ctx, `
		UPDATE objects SET unit_id = ?, name = ?, timezone = ?, closing = ?, system_id = ?, rate = ?,
			late_threshold_minutes = ?, late_penalty_per_minute = ?, task_defaults_json = ?, active = ?
		WHERE id = ?`,
		object.UnitID, object.Name, object.Timezone, nullDayTime(object.Closing),
		nullSystemID(object.SystemID), nullMoney(object.Rate),
		threshold, perMinute, nullString(tasksJSON), object.Active, object.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update object: %w", err)
	}
	return requireRow(res, "object", string(object.ID))
}

func (s *Store) ListObjects(ctx context.Context, owner core.OwnerID) ([]core.WorkObject, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, owner_id, unit_id, name, timezone, closing, system_id, rate,
			late_threshold_minutes, late_penalty_per_minute, task_defaults_json, active
		FROM objects WHERE owner_id = ? ORDER BY name, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []core.WorkObject
	for rows.Next() {
		object, err := s.scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, rows.Err()
}

func (s *Store) scanObject(sc scanner) (core.WorkObject, error) {
	var (
		object    core.WorkObject
		closing   sql.NullString
		systemID  sql.NullString
		rate      sql.NullString
		threshold sql.NullInt64
		perMinute sql.NullString
		tasksJSON sql.NullString
	)
	err := sc.Scan(&object.ID, &object.OwnerID, &object.UnitID, &object.Name, &object.Timezone,
		&closing, &systemID, &rate, &threshold, &perMinute, &tasksJSON, &object.Active)
	if err != nil {
		return object, err
	}
	if closing.Valid {
		dt, err := core.ParseDayTime(closing.String)
		if err != nil {
			return object, fmt.Errorf("object %s: bad closing time: %w", object.ID, err)
		}
		object.Closing = &dt
	}
	if systemID.Valid {
		id := core.SystemID(systemID.String)
		object.SystemID = &id
	}
	if rate.Valid {
		m := core.ParseMoney(rate.String)
		object.Rate = &m
	}
	object.Late = latePolicyFromColumns(threshold, perMinute)
	if tasksJSON.Valid && tasksJSON.String != "" {
		defs, err := s.factory.ParseTaskDefinitions(tasksJSON.String)
		if err != nil {
			return object, fmt.Errorf("object %s: bad task defaults: %w", object.ID, err)
		}
		object.TaskDefaults = defs
	}
	return object, nil
}

// =============================================================================
// SYSTEM STORE
// =============================================================================

func (s *Store) CreateSystem(ctx context.Context, system core.PaymentSystem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO systems (id, owner_id, name, kind, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		system.ID, system.OwnerID, system.Name, system.Kind, nowRFC3339(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ValidationError{Field: "id", Reason: "system already exists"}
		}
		return fmt.Errorf("failed to create system: %w", err)
	}
	return nil
}

func (s *Store) GetSystem(ctx context.Context, id core.SystemID) (core.PaymentSystem, error) {
	var system core.PaymentSystem
	err := s.q.QueryRowContext(ctx,
		"SELECT id, owner_id, name, kind FROM systems WHERE id = ?", id,
	).Scan(&system.ID, &system.OwnerID, &system.Name, &system.Kind)
	if err == sql.ErrNoRows {
		return core.PaymentSystem{}, &core.NotFoundError{Kind: "system", ID: string(id)}
	}
	return system, err
}

func (s *Store) ListSystems(ctx context.Context, owner core.OwnerID) ([]core.PaymentSystem, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, owner_id, name, kind FROM systems WHERE owner_id = ? ORDER BY name, id", owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var systems []core.PaymentSystem
	for rows.Next() {
		var system core.PaymentSystem
		if err := rows.Scan(&system.ID, &system.OwnerID, &system.Name, &system.Kind); err != nil {
			return nil, err
		}
		systems = append(systems, system)
	}
	return systems, rows.Err()
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

func (s *Store) CreateSchedule(ctx context.Context, schedule core.PaymentSchedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	instancesJSON, err := s.factory.MarshalInstances(schedule.Instances)
	if err != nil {
		return err
	}
	now := nowRFC3339()
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO schedules (id, owner_id, name, active, frequency, payment_weekday,
			start_offset, end_offset, payment_day, instances_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID, schedule.OwnerID, schedule.Name, schedule.Active, schedule.Frequency,
		schedule.PaymentWeekday, schedule.StartOffset, schedule.EndOffset, schedule.PaymentDay,
		nullString(instancesJSON), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ValidationError{Field: "id", Reason: "schedule already exists"}
		}
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, id core.ScheduleID) (core.PaymentSchedule, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, active, frequency, payment_weekday,
			start_offset, end_offset, payment_day, instances_json
		FROM schedules WHERE id = ?`, id)
	schedule, err := s.scanSchedule(row)
	if err == sql.ErrNoRows {
		return core.PaymentSchedule{}, &core.NotFoundError{Kind: "schedule", ID: string(id)}
	}
	return schedule, err
}

func (s *Store) UpdateSchedule(ctx context.Context, schedule core.PaymentSchedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	instancesJSON, err := s.factory.MarshalInstances(schedule.Instances)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE schedules SET name = ?, active = ?, frequency = ?, payment_weekday = ?,
			start_offset = ?, end_offset = ?, payment_day = ?, instances_json = ?, updated_at = ?
		WHERE id = ?`,
		schedule.Name, schedule.Active, schedule.Frequency, schedule.PaymentWeekday,
		schedule.StartOffset, schedule.EndOffset, schedule.PaymentDay,
		nullString(instancesJSON), nowRFC3339(), schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return requireRow(res, "schedule", string(schedule.ID))
}

func (s *Store) ListActiveSchedules(ctx context.Context) ([]core.PaymentSchedule, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, owner_id, name, active, frequency, payment_weekday,
			start_offset, end_offset, payment_day, instances_json
		FROM schedules WHERE active = TRUE ORDER BY owner_id, name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []core.PaymentSchedule
	for rows.Next() {
		schedule, err := s.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

func (s *Store) scanSchedule(sc scanner) (core.PaymentSchedule, error) {
	var (
		schedule      core.PaymentSchedule
		instancesJSON sql.NullString
	)
	err := sc.Scan(&schedule.ID, &schedule.OwnerID, &schedule.Name, &schedule.Active,
		&schedule.Frequency, &schedule.PaymentWeekday, &schedule.StartOffset,
		&schedule.EndOffset, &schedule.PaymentDay, &instancesJSON)
	if err != nil {
		return schedule, err
	}
	if instancesJSON.Valid && instancesJSON.String != "" {
		instances, err := s.factory.ParseInstances(instancesJSON.String)
		if err != nil {
			return schedule, fmt.Errorf("schedule %s: bad instances: %w", schedule.ID, err)
		}
		schedule.Instances = instances
	}
	return schedule, nil
}

// =============================================================================
// CONTRACT STORE
// =============================================================================

func (s *Store) CreateContract(ctx context.Context, contract core.Contract) error {
	allowedJSON, permsJSON, err := contractJSON(contract)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO contracts (id, owner_id, employee_id, status, rate, rate_precedence,
			system_id, system_precedence, allowed_objects_json, permissions_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contract.ID, contract.OwnerID, contract.EmployeeID, contract.Status,
		nullMoney(contract.Rate), contract.RatePrecedence,
		nullSystemID(contract.SystemID), contract.SystemPrecedence,
		nullString(allowedJSON), nullString(permsJSON), nowRFC3339(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ValidationError{Field: "employee_id", Reason: "employee already has a contract with this owner"}
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

func (s *Store) GetContract(ctx context.Context, id core.ContractID) (core.Contract, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, employee_id, status, rate, rate_precedence,
			system_id, system_precedence, allowed_objects_json, permissions_json
		FROM contracts WHERE id = ?`, id)
	contract, err := scanContract(row)
	if err == sql.ErrNoRows {
		return core.Contract{}, &core.NotFoundError{Kind: "contract", ID: string(id)}
	}
	return contract, err
}

func (s *Store) UpdateContract(ctx context.Context, contract core.Contract) error {
	allowedJSON, permsJSON, err := contractJSON(contract)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE contracts SET status = ?, rate = ?, rate_precedence = ?,
			system_id = ?, system_precedence = ?, allowed_objects_json = ?, permissions_json = ?
		WHERE id = ?`,
		contract.Status, nullMoney(contract.Rate), contract.RatePrecedence,
		nullSystemID(contract.SystemID), contract.SystemPrecedence,
		nullString(allowedJSON), nullString(permsJSON), contract.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return requireRow(res, "contract", string(contract.ID))
}

func (s *Store) FindContract(ctx context.Context, employee core.EmployeeID, owner core.OwnerID) (core.Contract, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, employee_id, status, rate, rate_precedence,
			system_id, system_precedence, allowed_objects_json, permissions_json
		FROM contracts WHERE employee_id = ? AND owner_id = ?`, employee, owner)
	contract, err := scanContract(row)
	if err == sql.ErrNoRows {
		return core.Contract{}, &core.NotFoundError{Kind: "contract", ID: string(employee) + "@" + string(owner)}
	}
	return contract, err
}

func contractJSON(contract core.Contract) (allowed, perms string, err error) {
	if len(contract.AllowedObjectIDs) > 0 {
		b, err := json.Marshal(contract.AllowedObjectIDs)
		if err != nil {
			return "", "", err
		}
		allowed = string(b)
	}
	if len(contract.Permissions) > 0 {
		b, err := json.Marshal(contract.Permissions)
		if err != nil {
			return "", "", err
		}
		perms = string(b)
	}
	return allowed, perms, nil
}

func scanContract(sc scanner) (core.Contract, error) {
	var (
		contract    core.Contract
		rate        sql.NullString
		systemID    sql.NullString
		allowedJSON sql.NullString
		permsJSON   sql.NullString
	)
	err := sc.Scan(&contract.ID, &contract.OwnerID, &contract.EmployeeID, &contract.Status,
		&rate, &contract.RatePrecedence, &systemID, &contract.SystemPrecedence,
		&allowedJSON, &permsJSON)
	if err != nil {
		return contract, err
	}
	if rate.Valid {
		m := core.ParseMoney(rate.String)
		contract.Rate = &m
	}
	if systemID.Valid {
		id := core.SystemID(systemID.String)
		contract.SystemID = &id
	}
	if allowedJSON.Valid && allowedJSON.String != "" {
		if err := json.Unmarshal([]byte(allowedJSON.String), &contract.AllowedObjectIDs); err != nil {
			return contract, fmt.Errorf("contract %s: bad allowed objects: %w", contract.ID, err)
		}
	}
	if permsJSON.Valid && permsJSON.String != "" {
		if err := json.Unmarshal([]byte(permsJSON.String), &contract.Permissions); err != nil {
			return contract, fmt.Errorf("contract %s: bad permissions: %w", contract.ID, err)
		}
	}
	return contract, nil
}

// =============================================================================
// ENTRY STORE
// =============================================================================

func (s *Store) CreateEntry(ctx context.Context, entry core.ScheduleEntry) error {
	templatesJSON, err := s.factory.MarshalTaskDefinitions(entry.TaskTemplates)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO entries (id, employee_id, object_id, planned_start, planned_end, status,
			task_list_defined, task_templates_json, include_object_tasks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EmployeeID, entry.ObjectID,
		formatInstant(entry.PlannedStart), formatInstant(entry.PlannedEnd), entry.Status,
		entry.TaskListDefined, nullString(templatesJSON), entry.IncludeObjectTasks, nowRFC3339(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ValidationError{Field: "id", Reason: "entry already exists"}
		}
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id core.EntryID) (core.ScheduleEntry, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, employee_id, object_id, planned_start, planned_end, status,
			task_list_defined, task_templates_json, include_object_tasks
		FROM entries WHERE id = ?`, id)
	entry, err := s.scanEntry(row)
	if err == sql.ErrNoRows {
		return core.ScheduleEntry{}, &core.NotFoundError{Kind: "entry", ID: string(id)}
	}
	return entry, err
}

// TransitionEntry is a single conditional UPDATE: concurrent attempts
// cannot both succeed.
func (s *Store) TransitionEntry(ctx context.Context, id core.EntryID, from []core.EntryStatus, to core.EntryStatus) error {
	if len(from) == 0 {
		return &core.ValidationError{Field: "from", Reason: "empty status list"}
	}
	placeholders := strings.Repeat("?,", len(from))
	placeholders = placeholders[:len(placeholders)-1]

	args := []any{to}
	for _, status := range from {
		args = append(args, status)
	}
	args = append(args, id)

	res, err := s.q.ExecContext(ctx,
		"UPDATE entries SET status = ? WHERE status IN ("+placeholders+") AND id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to transition entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		return &core.NotActiveError{Kind: "entry", ID: string(id), Status: string(entry.Status)}
	}
	return nil
}

func (s *Store) ListEntriesByEmployee(ctx context.Context, employee core.EmployeeID) ([]core.ScheduleEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, employee_id, object_id, planned_start, planned_end, status,
			task_list_defined, task_templates_json, include_object_tasks
		FROM entries WHERE employee_id = ? ORDER BY planned_start DESC, id`, employee)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []core.ScheduleEntry
	for rows.Next() {
		entry, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) scanEntry(sc scanner) (core.ScheduleEntry, error) {
	var (
		entry         core.ScheduleEntry
		plannedStart  string
		plannedEnd    string
		templatesJSON sql.NullString
	)
	err := sc.Scan(&entry.ID, &entry.EmployeeID, &entry.ObjectID, &plannedStart, &plannedEnd,
		&entry.Status, &entry.TaskListDefined, &templatesJSON, &entry.IncludeObjectTasks)
	if err != nil {
		return entry, err
	}
	entry.PlannedStart = parseInstant(plannedStart)
	entry.PlannedEnd = parseInstant(plannedEnd)
	if templatesJSON.Valid && templatesJSON.String != "" {
		defs, err := s.factory.ParseTaskDefinitions(templatesJSON.String)
		if err != nil {
			return entry, fmt.Errorf("entry %s: bad task templates: %w", entry.ID, err)
		}
		entry.TaskTemplates = defs
	}
	return entry, nil
}

// =============================================================================
// SHIFT STORE
// =============================================================================

const shiftColumns = `id, entry_id, object_id, employee_id, start_at, end_at, status,
	start_location, end_location, hours, base_pay, auto_closed`

func (s *Store) OpenShift(ctx context.Context, shift core.Shift) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO shifts (id, entry_id, object_id, employee_id, start_at, end_at, status,
			start_location, end_location, hours, base_pay, auto_closed, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, NULL, '0', '0', FALSE, ?)`,
		shift.ID, nullEntryID(shift.EntryID), shift.ObjectID, shift.EmployeeID,
		formatInstant(shift.StartAt), core.ShiftActive,
		nullStringPtr(shift.StartLocation), nowRFC3339(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// The one-active partial index tripped: surface the blocking
			// shift so callers can report it.
			active, ferr := s.FindActiveShift(ctx, shift.EmployeeID)
			if ferr == nil && active != nil {
				return &core.ConflictError{EmployeeID: shift.EmployeeID, ActiveShiftID: active.ID}
			}
			return &core.ConflictError{EmployeeID: shift.EmployeeID}
		}
		return fmt.Errorf("failed to open shift: %w", err)
	}
	return nil
}

func (s *Store) GetShift(ctx context.Context, id core.ShiftID) (core.Shift, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+shiftColumns+" FROM shifts WHERE id = ?", id)
	shift, err := scanShift(row)
	if err == sql.ErrNoRows {
		return core.Shift{}, &core.NotFoundError{Kind: "shift", ID: string(id)}
	}
	return shift, err
}

func (s *Store) FindActiveShift(ctx context.Context, employee core.EmployeeID) (*core.Shift, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+shiftColumns+" FROM shifts WHERE employee_id = ? AND status = ?",
		employee, core.ShiftActive)
	shift, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (s *Store) CloseShift(ctx context.Context, shift core.Shift) error {
	if shift.EndAt == nil {
		return &core.ValidationError{Field: "end_at", Reason: "required to close"}
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE shifts SET end_at = ?, status = ?, end_location = ?, hours = ?, base_pay = ?, auto_closed = ?
		WHERE id = ? AND status = ?`,
		formatInstant(*shift.EndAt), core.ShiftCompleted, nullStringPtr(shift.EndLocation),
		shift.Hours.String(), shift.BasePay.String(), shift.AutoClosed,
		shift.ID, core.ShiftActive,
	)
	if err != nil {
		return fmt.Errorf("failed to close shift: %w", err)
	}
	return s.requireShiftTransition(ctx, res, shift.ID)
}

func (s *Store) CancelShift(ctx context.Context, id core.ShiftID, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE shifts SET end_at = ?, status = ? WHERE id = ? AND status = ?`,
		formatInstant(at.UTC()), core.ShiftCancelled, id, core.ShiftActive,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel shift: %w", err)
	}
	return s.requireShiftTransition(ctx, res, id)
}

// requireShiftTransition distinguishes "no such shift" from "wrong
// status" after a conditional update touched zero rows.
func (s *Store) requireShiftTransition(ctx context.Context, res sql.Result, id core.ShiftID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	shift, err := s.GetShift(ctx, id)
	if err != nil {
		return err
	}
	return &core.NotActiveError{Kind: "shift", ID: string(id), Status: string(shift.Status)}
}

func (s *Store) ListActiveShifts(ctx context.Context) ([]core.Shift, error) {
	return s.queryShifts(ctx,
		"SELECT "+shiftColumns+" FROM shifts WHERE status = ? ORDER BY start_at, id",
		core.ShiftActive)
}

func (s *Store) ListActiveShiftsByObject(ctx context.Context, object core.ObjectID) ([]core.Shift, error) {
	return s.queryShifts(ctx,
		"SELECT "+shiftColumns+" FROM shifts WHERE object_id = ? AND status = ? ORDER BY start_at, id",
		object, core.ShiftActive)
}

func (s *Store) ListShiftsByEntry(ctx context.Context, entry core.EntryID) ([]core.Shift, error) {
	return s.queryShifts(ctx,
		"SELECT "+shiftColumns+" FROM shifts WHERE entry_id = ? ORDER BY start_at, id", entry)
}

func (s *Store) ListCompletedShifts(ctx context.Context, from, to time.Time) ([]core.Shift, error) {
	return s.queryShifts(ctx,
		"SELECT "+shiftColumns+` FROM shifts
		 WHERE status = ? AND end_at >= ? AND end_at < ? ORDER BY start_at, id`,
		core.ShiftCompleted, formatInstant(from.UTC()), formatInstant(to.UTC()))
}

func (s *Store) ListCompletedShiftsByObject(ctx context.Context, object core.ObjectID, from, to time.Time) ([]core.Shift, error) {
	return s.queryShifts(ctx,
		"SELECT "+shiftColumns+` FROM shifts
		 WHERE object_id = ? AND status = ? AND start_at >= ? AND start_at < ? ORDER BY start_at, id`,
		object, core.ShiftCompleted, formatInstant(from.UTC()), formatInstant(to.UTC()))
}

func (s *Store) ListShiftsByEmployee(ctx context.Context, employee core.EmployeeID, status *core.ShiftStatus) ([]core.Shift, error) {
	if status != nil {
		return s.queryShifts(ctx,
			"SELECT "+shiftColumns+" FROM shifts WHERE employee_id = ? AND status = ? ORDER BY start_at DESC, id",
			employee, *status)
	}
	return s.queryShifts(ctx,
		"SELECT "+shiftColumns+" FROM shifts WHERE employee_id = ? ORDER BY start_at DESC, id",
		employee)
}

func (s *Store) queryShifts(ctx context.Context, query string, args ...any) ([]core.Shift, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []core.Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}

func scanShift(sc scanner) (core.Shift, error) {
	var (
		shift         core.Shift
		entryID       sql.NullString
		startAt       string
		endAt         sql.NullString
		startLocation sql.NullString
		endLocation   sql.NullString
		hours         string
		basePay       string
	)
	err := sc.Scan(&shift.ID, &entryID, &shift.ObjectID, &shift.EmployeeID, &startAt, &endAt,
		&shift.Status, &startLocation, &endLocation, &hours, &basePay, &shift.AutoClosed)
	if err != nil {
		return shift, err
	}
	if entryID.Valid {
		id := core.EntryID(entryID.String)
		shift.EntryID = &id
	}
	shift.StartAt = parseInstant(startAt)
	if endAt.Valid {
		t := parseInstant(endAt.String)
		shift.EndAt = &t
	}
	shift.StartLocation = ptrFromNull(startLocation)
	shift.EndLocation = ptrFromNull(endLocation)
	shift.Hours = core.ParseMoney(hours)
	shift.BasePay = core.ParseMoney(basePay)
	return shift, nil
}

// =============================================================================
// TASK STORE
// =============================================================================

func (s *Store) CreateTasks(ctx context.Context, tasks []core.TaskAssignment) error {
	now := nowRFC3339()
	for _, task := range tasks {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO tasks (id, shift_id, text, mandatory, amount, requires_media, source,
				completed, completed_at, evidence_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, NULL, NULL, ?)`,
			task.ID, task.ShiftID, task.Text, task.Mandatory, task.Amount.String(),
			task.RequiresMedia, task.Source, now,
		)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id core.TaskID) (core.TaskAssignment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, shift_id, text, mandatory, amount, requires_media, source,
			completed, completed_at, evidence_ref
		FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return core.TaskAssignment{}, &core.NotFoundError{Kind: "task", ID: string(id)}
	}
	return task, err
}

func (s *Store) CompleteTask(ctx context.Context, id core.TaskID, at time.Time, evidenceRef *string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE tasks SET completed = TRUE, completed_at = ?, evidence_ref = ? WHERE id = ?`,
		formatInstant(at.UTC()), nullStringPtr(evidenceRef), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return requireRow(res, "task", string(id))
}

func (s *Store) ListTasksByShift(ctx context.Context, shift core.ShiftID) ([]core.TaskAssignment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, shift_id, text, mandatory, amount, requires_media, source,
			completed, completed_at, evidence_ref
		FROM tasks WHERE shift_id = ? ORDER BY created_at, id`, shift)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []core.TaskAssignment
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(sc scanner) (core.TaskAssignment, error) {
	var (
		task        core.TaskAssignment
		amount      string
		completedAt sql.NullString
		evidenceRef sql.NullString
	)
	err := sc.Scan(&task.ID, &task.ShiftID, &task.Text, &task.Mandatory, &amount,
		&task.RequiresMedia, &task.Source, &task.Completed, &completedAt, &evidenceRef)
	if err != nil {
		return task, err
	}
	task.Amount = core.ParseMoney(amount)
	if completedAt.Valid {
		t := parseInstant(completedAt.String)
		task.CompletedAt = &t
	}
	task.EvidenceRef = ptrFromNull(evidenceRef)
	return task, nil
}

// =============================================================================
// ADJUSTMENT STORE
// =============================================================================

func (s *Store) UpsertAutoAdjustment(ctx context.Context, adj core.PayrollAdjustment) (core.UpsertOutcome, error) {
	var (
		existingID     string
		existingAmount string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, amount FROM adjustments
		WHERE shift_id = ? AND kind = ? AND automatic = TRUE AND COALESCE(task_id, '') = ?`,
		adj.ShiftID, adj.Kind, taskKey(adj.TaskID),
	).Scan(&existingID, &existingAmount)

	switch {
	case err == sql.ErrNoRows:
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO adjustments (id, shift_id, employee_id, object_id, kind, amount,
				automatic, task_id, note, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, TRUE, ?, ?, ?, ?)`,
			adj.ID, adj.ShiftID, adj.EmployeeID, adj.ObjectID, adj.Kind, adj.Amount.String(),
			nullTaskID(adj.TaskID), adj.Note,
			formatInstant(adj.CreatedAt), formatInstant(adj.UpdatedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert adjustment: %w", err)
		}
		return core.UpsertCreated, nil

	case err != nil:
		return 0, err
	}

	if core.ParseMoney(existingAmount).Equal(adj.Amount) {
		return core.UpsertUnchanged, nil
	}
	_, err = s.q.ExecContext(ctx,
		"UPDATE adjustments SET amount = ?, note = ?, updated_at = ? WHERE id = ?",
		adj.Amount.String(), adj.Note, formatInstant(adj.UpdatedAt), existingID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update adjustment: %w", err)
	}
	return core.UpsertUpdated, nil
}

func (s *Store) CreateAdjustment(ctx context.Context, adj core.PayrollAdjustment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO adjustments (id, shift_id, employee_id, object_id, kind, amount,
			automatic, task_id, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		adj.ID, adj.ShiftID, adj.EmployeeID, adj.ObjectID, adj.Kind, adj.Amount.String(),
		adj.Automatic, nullTaskID(adj.TaskID), adj.Note,
		formatInstant(adj.CreatedAt), formatInstant(adj.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create adjustment: %w", err)
	}
	return nil
}

func (s *Store) ListAdjustmentsByShift(ctx context.Context, shift core.ShiftID) ([]core.PayrollAdjustment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, shift_id, employee_id, object_id, kind, amount, automatic, task_id, note,
			created_at, updated_at
		FROM adjustments WHERE shift_id = ? ORDER BY created_at, id`, shift)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []core.PayrollAdjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

func scanAdjustment(sc scanner) (core.PayrollAdjustment, error) {
	var (
		adj       core.PayrollAdjustment
		amount    string
		taskID    sql.NullString
		note      sql.NullString
		createdAt string
		updatedAt string
	)
	err := sc.Scan(&adj.ID, &adj.ShiftID, &adj.EmployeeID, &adj.ObjectID, &adj.Kind, &amount,
		&adj.Automatic, &taskID, &note, &createdAt, &updatedAt)
	if err != nil {
		return adj, err
	}
	adj.Amount = core.ParseMoney(amount)
	if taskID.Valid {
		id := core.TaskID(taskID.String)
		adj.TaskID = &id
	}
	adj.Note = note.String
	adj.CreatedAt = parseInstant(createdAt)
	adj.UpdatedAt = parseInstant(updatedAt)
	return adj, nil
}

// =============================================================================
// PAYROLL STORE
// =============================================================================

const payrollColumns = `id, owner_id, employee_id, schedule_id, period_start, period_end,
	base_amount, bonus_amount, deduction_amount, total, status, created_at, updated_at`

func (s *Store) GetPayrollEntry(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+payrollColumns+" FROM payroll_entries WHERE id = ?", id)
	entry, err := scanPayrollEntry(row)
	if err == sql.ErrNoRows {
		return core.PayrollEntry{}, &core.NotFoundError{Kind: "payroll entry", ID: string(id)}
	}
	return entry, err
}

func (s *Store) GetPayrollEntryByKey(ctx context.Context, employee core.EmployeeID, start, end core.Date) (*core.PayrollEntry, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+payrollColumns+` FROM payroll_entries
		 WHERE employee_id = ? AND period_start = ? AND period_end = ?`,
		employee, start.String(), end.String())
	entry, err := scanPayrollEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) UpsertPayrollEntry(ctx context.Context, entry core.PayrollEntry) (core.UpsertOutcome, error) {
	existing, err := s.GetPayrollEntryByKey(ctx, entry.EmployeeID, entry.PeriodStart, entry.PeriodEnd)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO payroll_entries (id, owner_id, employee_id, schedule_id,
				period_start, period_end, base_amount, bonus_amount, deduction_amount, total,
				status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.OwnerID, entry.EmployeeID, entry.ScheduleID,
			entry.PeriodStart.String(), entry.PeriodEnd.String(),
			entry.BaseAmount.String(), entry.BonusAmount.String(),
			entry.DeductionAmount.String(), entry.Total.String(),
			entry.Status, formatInstant(entry.CreatedAt), formatInstant(entry.UpdatedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert payroll entry: %w", err)
		}
		return core.UpsertCreated, nil
	}

	if existing.BaseAmount.Equal(entry.BaseAmount) &&
		existing.BonusAmount.Equal(entry.BonusAmount) &&
		existing.DeductionAmount.Equal(entry.DeductionAmount) &&
		existing.Total.Equal(entry.Total) {
		return core.UpsertUnchanged, nil
	}

	// Amounts refresh in place; identity, status, and created_at stay.
	_, err = s.q.ExecContext(ctx, `
		UPDATE payroll_entries SET schedule_id = ?, base_amount = ?, bonus_amount = ?,
			deduction_amount = ?, total = ?, updated_at = ?
		WHERE id = ?`,
		entry.ScheduleID, entry.BaseAmount.String(), entry.BonusAmount.String(),
		entry.DeductionAmount.String(), entry.Total.String(),
		formatInstant(entry.UpdatedAt), existing.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update payroll entry: %w", err)
	}
	return core.UpsertUpdated, nil
}

// TransitionPayrollEntry is a conditional UPDATE like TransitionEntry, so
// an approve racing a pay cannot both apply.
func (s *Store) TransitionPayrollEntry(ctx context.Context, id core.PayrollEntryID, from []core.PayrollStatus, to core.PayrollStatus) error {
	if len(from) == 0 {
		return &core.ValidationError{Field: "from", Reason: "empty status list"}
	}
	placeholders := strings.Repeat("?,", len(from))
	placeholders = placeholders[:len(placeholders)-1]

	args := []any{to, formatInstant(time.Now())}
	for _, status := range from {
		args = append(args, status)
	}
	args = append(args, id)

	res, err := s.q.ExecContext(ctx,
		"UPDATE payroll_entries SET status = ?, updated_at = ? WHERE status IN ("+placeholders+") AND id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to transition payroll entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var status string
		err := s.q.QueryRowContext(ctx, "SELECT status FROM payroll_entries WHERE id = ?", id).Scan(&status)
		if err == sql.ErrNoRows {
			return &core.NotFoundError{Kind: "payroll entry", ID: string(id)}
		}
		if err != nil {
			return err
		}
		return &core.NotActiveError{Kind: "payroll entry", ID: string(id), Status: status}
	}
	return nil
}

func (s *Store) ListPayrollEntries(ctx context.Context, filter core.PayrollFilter) ([]core.PayrollEntry, error) {
	query := "SELECT " + payrollColumns + " FROM payroll_entries WHERE 1=1"
	var args []any
	if filter.EmployeeID != nil {
		query += " AND employee_id = ?"
		args = append(args, *filter.EmployeeID)
	}
	if filter.OwnerID != nil {
		query += " AND owner_id = ?"
		args = append(args, *filter.OwnerID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY period_start DESC, employee_id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []core.PayrollEntry
	for rows.Next() {
		entry, err := scanPayrollEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanPayrollEntry(sc scanner) (core.PayrollEntry, error) {
	var (
		entry       core.PayrollEntry
		periodStart string
		periodEnd   string
		base        string
		bonus       string
		deduction   string
		total       string
		createdAt   string
		updatedAt   string
	)
	err := sc.Scan(&entry.ID, &entry.OwnerID, &entry.EmployeeID, &entry.ScheduleID,
		&periodStart, &periodEnd, &base, &bonus, &deduction, &total,
		&entry.Status, &createdAt, &updatedAt)
	if err != nil {
		return entry, err
	}
	entry.PeriodStart, err = core.ParseDate(periodStart)
	if err != nil {
		return entry, fmt.Errorf("payroll entry %s: bad period start: %w", entry.ID, err)
	}
	entry.PeriodEnd, err = core.ParseDate(periodEnd)
	if err != nil {
		return entry, fmt.Errorf("payroll entry %s: bad period end: %w", entry.ID, err)
	}
	entry.BaseAmount = core.ParseMoney(base)
	entry.BonusAmount = core.ParseMoney(bonus)
	entry.DeductionAmount = core.ParseMoney(deduction)
	entry.Total = core.ParseMoney(total)
	entry.CreatedAt = parseInstant(createdAt)
	entry.UpdatedAt = parseInstant(updatedAt)
	return entry, nil
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, event core.Event) error {
	var payloadJSON string
	if len(event.Payload) > 0 {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		payloadJSON = string(b)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO events (id, kind, occurred_at, employee_id, object_id, shift_id, entry_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Kind, formatInstant(event.OccurredAt),
		nullEmployeeID(event.EmployeeID), nullObjectID(event.ObjectID),
		nullShiftID(event.ShiftID), nullEntryID(event.EntryID),
		nullString(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, since time.Time, limit int) ([]core.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, kind, occurred_at, employee_id, object_id, shift_id, entry_id, payload_json
		FROM events WHERE occurred_at >= ? ORDER BY occurred_at, id LIMIT ?`,
		formatInstant(since.UTC()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(sc scanner) (core.Event, error) {
	var (
		event       core.Event
		occurredAt  string
		employeeID  sql.NullString
		objectID    sql.NullString
		shiftID     sql.NullString
		entryID     sql.NullString
		payloadJSON sql.NullString
	)
	err := sc.Scan(&event.ID, &event.Kind, &occurredAt, &employeeID, &objectID,
		&shiftID, &entryID, &payloadJSON)
	if err != nil {
		return event, err
	}
	event.OccurredAt = parseInstant(occurredAt)
	if employeeID.Valid {
		id := core.EmployeeID(employeeID.String)
		event.EmployeeID = &id
	}
	if objectID.Valid {
		id := core.ObjectID(objectID.String)
		event.ObjectID = &id
	}
	if shiftID.Valid {
		id := core.ShiftID(shiftID.String)
		event.ShiftID = &id
	}
	if entryID.Valid {
		id := core.EntryID(entryID.String)
		event.EntryID = &id
	}
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &event.Payload); err != nil {
			return event, fmt.Errorf("event %s: bad payload: %w", event.ID, err)
		}
	}
	return event, nil
}

// =============================================================================
// JOB RUN STORE
// =============================================================================

func (s *Store) CreateJobRun(ctx context.Context, run core.JobRun) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO job_runs (id, job, target_date, started_at, finished_at, status,
			created, updated, skipped, errors_json)
		VALUES (?, ?, ?, ?, NULL, ?, 0, 0, 0, NULL)`,
		run.ID, run.Job, run.TargetDate.String(), formatInstant(run.StartedAt), run.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create job run: %w", err)
	}
	return nil
}

func (s *Store) FinishJobRun(ctx context.Context, run core.JobRun) error {
	var errorsJSON string
	if len(run.Errors) > 0 {
		b, err := json.Marshal(run.Errors)
		if err != nil {
			return err
		}
		errorsJSON = string(b)
	}
	var finishedAt any
	if run.FinishedAt != nil {
		finishedAt = formatInstant(*run.FinishedAt)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE job_runs SET finished_at = ?, status = ?, created = ?, updated = ?, skipped = ?, errors_json = ?
		WHERE id = ?`,
		finishedAt, run.Status, run.Created, run.Updated, run.Skipped,
		nullString(errorsJSON), run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish job run: %w", err)
	}
	return requireRow(res, "job run", run.ID)
}

func (s *Store) IsJobComplete(ctx context.Context, job core.JobName, target core.Date) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM job_runs WHERE job = ? AND target_date = ? AND status = ?",
		job, target.String(), core.JobCompleted,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) ListJobRuns(ctx context.Context, limit int) ([]core.JobRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, job, target_date, started_at, finished_at, status, created, updated, skipped, errors_json
		FROM job_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []core.JobRun
	for rows.Next() {
		var (
			run        core.JobRun
			targetDate string
			startedAt  string
			finishedAt sql.NullString
			errorsJSON sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Job, &targetDate, &startedAt, &finishedAt,
			&run.Status, &run.Created, &run.Updated, &run.Skipped, &errorsJSON); err != nil {
			return nil, err
		}
		run.TargetDate, err = core.ParseDate(targetDate)
		if err != nil {
			return nil, fmt.Errorf("job run %s: bad target date: %w", run.ID, err)
		}
		run.StartedAt = parseInstant(startedAt)
		if finishedAt.Valid {
			t := parseInstant(finishedAt.String)
			run.FinishedAt = &t
		}
		if errorsJSON.Valid && errorsJSON.String != "" {
			if err := json.Unmarshal([]byte(errorsJSON.String), &run.Errors); err != nil {
				return nil, fmt.Errorf("job run %s: bad errors: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"events", "job_runs", "payroll_entries", "adjustments", "tasks",
		"shifts", "entries", "contracts", "schedules", "systems", "objects", "units"}
	for _, table := range tables {
		if _, err := s.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseInstant(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func ptrFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullUnitID(id *core.UnitID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullSystemID(id *core.SystemID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullScheduleID(id *core.ScheduleID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullEntryID(id *core.EntryID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullTaskID(id *core.TaskID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullEmployeeID(id *core.EmployeeID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullObjectID(id *core.ObjectID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullShiftID(id *core.ShiftID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullMoney(m *core.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}

func nullDayTime(dt *core.DayTime) sql.NullString {
	if dt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: dt.String(), Valid: true}
}

func latePolicyColumns(late *core.LatePolicy) (sql.NullInt64, sql.NullString) {
	if late == nil {
		return sql.NullInt64{}, sql.NullString{}
	}
	return sql.NullInt64{Int64: int64(late.ThresholdMinutes), Valid: true},
		sql.NullString{String: late.PenaltyPerMinute.String(), Valid: true}
}

func latePolicyFromColumns(threshold sql.NullInt64, perMinute sql.NullString) *core.LatePolicy {
	if !threshold.Valid && !perMinute.Valid {
		return nil
	}
	late := &core.LatePolicy{PenaltyPerMinute: core.ZeroMoney()}
	if threshold.Valid {
		late.ThresholdMinutes = int(threshold.Int64)
	}
	if perMinute.Valid {
		late.PenaltyPerMinute = core.ParseMoney(perMinute.String)
	}
	return late
}

func taskKey(id *core.TaskID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}

// requireRow converts a zero-row update into NotFoundError.
func requireRow(res sql.Result, kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
