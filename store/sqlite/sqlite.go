/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface the engine, leave, and alerts
  packages consume. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  members:          directory slice the matrix iterates
  requirements:     configuration documents (JSON) plus hot columns
  progress_records: immutable completed-work records (no UPDATE/DELETE)
  certifications:   issued credentials with expiry dates
  leaves, waivers:  the excused-time ledger (soft deactivation only)
  alert_states:     per-(certification, expiry) alert tier, advanced via a
                    conditional upsert

CONCURRENCY:
  Opened in WAL mode so matrix evaluation's concurrent reads don't block.
  Leave/waiver mutations run inside WithUnit (BEGIN ... COMMIT/ROLLBACK),
  keeping the auto-link pair atomic. The alert tier advance is a single
  conditional UPDATE, so concurrent sweeps converge with one winner.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.

SEE ALSO:
  - store/memory.go: in-memory implementation with identical semantics
  - leave/store.go: unit-of-work contract
  - alerts/scheduler.go: conditional tier advance contract
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/stationops/compliance-engine/alerts"
	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/factory"
	"github.com/stationops/compliance-engine/leave"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db       *sql.DB
	reqCodec *factory.RequirementFactory
}

// New creates a new SQLite store. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, reqCodec: factory.NewRequirementFactory()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		hire_date TEXT NOT NULL,
		tier TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS requirements (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Progress records are immutable: inserts only, no UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS progress_records (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		activity TEXT NOT NULL,
		kind TEXT NOT NULL,
		record_date TEXT NOT NULL,
		hours TEXT NOT NULL DEFAULT '0',
		categories_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_progress_member_date
		ON progress_records(member_id, record_date);

	CREATE TABLE IF NOT EXISTS certifications (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		issued_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_certifications_member
		ON certifications(member_id);
	CREATE INDEX IF NOT EXISTS idx_certifications_expiry
		ON certifications(expires_at);

	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		exempt_from_training_waiver BOOLEAN NOT NULL DEFAULT FALSE,
		linked_waiver_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_member
		ON leaves(member_id);

	CREATE TABLE IF NOT EXISTS waivers (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		scopes TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		source TEXT NOT NULL,
		leave_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_waivers_member
		ON waivers(member_id);

	-- One row per (certification, expiry) cycle. Renewal means a new expiry
	-- and therefore a fresh row; old rows stay as history.
	CREATE TABLE IF NOT EXISTS alert_states (
		certification_id TEXT NOT NULL,
		expiry TEXT NOT NULL,
		member_id TEXT NOT NULL,
		last_tier INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (certification_id, expiry)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Compile-time interface checks.
var (
	_ engine.Directory           = (*Store)(nil)
	_ engine.ProgressSource      = (*Store)(nil)
	_ engine.CertificationSource = (*Store)(nil)
	_ leave.Store                = (*Store)(nil)
	_ alerts.CertificationLister = (*Store)(nil)
	_ alerts.StateStore          = (*Store)(nil)
)

// queryer lets Store methods run against either the pool or an open
// transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// MEMBER DIRECTORY
// =============================================================================

func (s *Store) SaveMember(ctx context.Context, m engine.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, name, active, hire_date, tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			hire_date = excluded.hire_date,
			tier = excluded.tier`,
		string(m.ID), m.Name, m.Active, m.HireDate.String(), m.Tier, engine.Today().String())
	return err
}

func (s *Store) GetMember(ctx context.Context, id engine.MemberID) (*engine.Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, active, hire_date, tier FROM members WHERE id = ?`, string(id))
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]engine.Member, error) {
	return s.queryMembers(ctx, `SELECT id, name, active, hire_date, tier FROM members ORDER BY id`)
}

func (s *Store) ActiveMembers(ctx context.Context) ([]engine.Member, error) {
	return s.queryMembers(ctx, `SELECT id, name, active, hire_date, tier FROM members WHERE active ORDER BY id`)
}

func (s *Store) queryMembers(ctx context.Context, query string, args ...any) ([]engine.Member, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []engine.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanMember(row rowScanner) (*engine.Member, error) {
	var (
		m        engine.Member
		id, hire string
	)
	if err := row.Scan(&id, &m.Name, &m.Active, &hire, &m.Tier); err != nil {
		return nil, err
	}
	m.ID = engine.MemberID(id)
	hireDate, err := engine.ParseDate(hire)
	if err != nil {
		return nil, fmt.Errorf("corrupt hire_date for member %s: %w", id, err)
	}
	m.HireDate = hireDate
	return &m, nil
}

// =============================================================================
// REQUIREMENTS - stored as configuration documents plus hot columns
// =============================================================================

func (s *Store) SaveRequirement(ctx context.Context, req engine.Requirement) error {
	if err := req.Validate(); err != nil {
		return err
	}
	configJSON, err := s.reqCodec.Marshal(req)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requirements (id, name, kind, active, config_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			active = excluded.active,
			config_json = excluded.config_json`,
		string(req.ID), req.Name, string(req.Kind), req.Active, configJSON, req.CreatedAt.String())
	return err
}

func (s *Store) GetRequirement(ctx context.Context, id engine.RequirementID) (*engine.Requirement, error) {
	var configJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM requirements WHERE id = ?`, string(id)).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.reqCodec.Parse(configJSON)
}

func (s *Store) ListRequirements(ctx context.Context) ([]engine.Requirement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config_json FROM requirements ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []engine.Requirement
	for rows.Next() {
		var configJSON string
		if err := rows.Scan(&configJSON); err != nil {
			return nil, err
		}
		req, err := s.reqCodec.Parse(configJSON)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

// =============================================================================
// PROGRESS RECORDS - insert-only
// =============================================================================

func (s *Store) SaveProgressRecord(ctx context.Context, rec engine.ProgressRecord) error {
	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress_records (id, member_id, activity, kind, record_date, hours, categories_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.MemberID), rec.Activity, string(rec.Kind),
		rec.Date.String(), rec.Hours.String(), string(categories), engine.Today().String())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("progress record %s already exists (records are immutable)", rec.ID)
	}
	return err
}

func (s *Store) RecordsInRange(ctx context.Context, memberID engine.MemberID, from, to engine.Date) ([]engine.ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, activity, kind, record_date, hours, categories_json
		FROM progress_records
		WHERE member_id = ? AND record_date >= ? AND record_date <= ?
		ORDER BY record_date, id`,
		string(memberID), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []engine.ProgressRecord
	for rows.Next() {
		var (
			rec                             engine.ProgressRecord
			id, member, kind, date, hours   string
			categoriesJSON                  string
		)
		if err := rows.Scan(&id, &member, &rec.Activity, &kind, &date, &hours, &categoriesJSON); err != nil {
			return nil, err
		}
		rec.ID = engine.ProgressID(id)
		rec.MemberID = engine.MemberID(member)
		rec.Kind = engine.RequirementKind(kind)
		if rec.Date, err = engine.ParseDate(date); err != nil {
			return nil, fmt.Errorf("corrupt record_date for progress %s: %w", id, err)
		}
		if rec.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("corrupt hours for progress %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &rec.Categories); err != nil {
			return nil, fmt.Errorf("corrupt categories for progress %s: %w", id, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// CERTIFICATIONS
// =============================================================================

func (s *Store) SaveCertification(ctx context.Context, cert engine.Certification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO certifications (id, member_id, name, category, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			issued_at = excluded.issued_at,
			expires_at = excluded.expires_at`,
		string(cert.ID), string(cert.MemberID), cert.Name, cert.Category,
		cert.IssuedAt.String(), cert.ExpiresAt.String())
	return err
}

func (s *Store) MemberCertifications(ctx context.Context, memberID engine.MemberID) ([]engine.Certification, error) {
	return s.queryCertifications(ctx, `
		SELECT id, member_id, name, category, issued_at, expires_at
		FROM certifications WHERE member_id = ? ORDER BY id`, string(memberID))
}

func (s *Store) ListCertifications(ctx context.Context) ([]engine.Certification, error) {
	return s.queryCertifications(ctx, `
		SELECT id, member_id, name, category, issued_at, expires_at
		FROM certifications ORDER BY id`)
}

func (s *Store) queryCertifications(ctx context.Context, query string, args ...any) ([]engine.Certification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []engine.Certification
	for rows.Next() {
		var (
			cert                       engine.Certification
			id, member, issued, expiry string
		)
		if err := rows.Scan(&id, &member, &cert.Name, &cert.Category, &issued, &expiry); err != nil {
			return nil, err
		}
		cert.ID = engine.CertificationID(id)
		cert.MemberID = engine.MemberID(member)
		if cert.IssuedAt, err = engine.ParseDate(issued); err != nil {
			return nil, fmt.Errorf("corrupt issued_at for certification %s: %w", id, err)
		}
		if cert.ExpiresAt, err = engine.ParseDate(expiry); err != nil {
			return nil, fmt.Errorf("corrupt expires_at for certification %s: %w", id, err)
		}
		certs = append(certs, cert)
	}
	return certs, rows.Err()
}

// =============================================================================
// LEAVES AND WAIVERS (leave.Store)
// =============================================================================

func (s *Store) GetLeave(ctx context.Context, id leave.LeaveID) (*leave.LeaveOfAbsence, error) {
	return getLeave(ctx, s.db, id)
}

func (s *Store) LeavesForMember(ctx context.Context, memberID engine.MemberID) ([]leave.LeaveOfAbsence, error) {
	return queryLeaves(ctx, s.db, `
		SELECT id, member_id, leave_type, start_date, end_date, active,
		       exempt_from_training_waiver, linked_waiver_id, created_at
		FROM leaves WHERE member_id = ? ORDER BY id`, string(memberID))
}

func (s *Store) ListLeaves(ctx context.Context) ([]leave.LeaveOfAbsence, error) {
	return queryLeaves(ctx, s.db, `
		SELECT id, member_id, leave_type, start_date, end_date, active,
		       exempt_from_training_waiver, linked_waiver_id, created_at
		FROM leaves ORDER BY id`)
}

func (s *Store) SaveLeave(ctx context.Context, l leave.LeaveOfAbsence) error {
	return saveLeave(ctx, s.db, l)
}

func (s *Store) GetWaiver(ctx context.Context, id leave.WaiverID) (*leave.Waiver, error) {
	return getWaiver(ctx, s.db, id)
}

func (s *Store) WaiversForMember(ctx context.Context, memberID engine.MemberID) ([]leave.Waiver, error) {
	return queryWaivers(ctx, s.db, `
		SELECT id, member_id, scopes, start_date, end_date, active, source, leave_id, created_at
		FROM waivers WHERE member_id = ? ORDER BY id`, string(memberID))
}

func (s *Store) ListWaivers(ctx context.Context) ([]leave.Waiver, error) {
	return queryWaivers(ctx, s.db, `
		SELECT id, member_id, scopes, start_date, end_date, active, source, leave_id, created_at
		FROM waivers ORDER BY id`)
}

func (s *Store) SaveWaiver(ctx context.Context, w leave.Waiver) error {
	return saveWaiver(ctx, s.db, w)
}

// WithUnit wraps fn in a database transaction. Rollback on error keeps the
// leave/waiver pair consistent under partial failure.
func (s *Store) WithUnit(ctx context.Context, fn func(leave.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	view := &unitView{tx: tx}
	if err := fn(view); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// unitView is the in-transaction leave.Store.
type unitView struct {
	tx *sql.Tx
}

func (v *unitView) GetLeave(ctx context.Context, id leave.LeaveID) (*leave.LeaveOfAbsence, error) {
	return getLeave(ctx, v.tx, id)
}

func (v *unitView) LeavesForMember(ctx context.Context, memberID engine.MemberID) ([]leave.LeaveOfAbsence, error) {
	return queryLeaves(ctx, v.tx, `
		SELECT id, member_id, leave_type, start_date, end_date, active,
		       exempt_from_training_waiver, linked_waiver_id, created_at
		FROM leaves WHERE member_id = ? ORDER BY id`, string(memberID))
}

func (v *unitView) SaveLeave(ctx context.Context, l leave.LeaveOfAbsence) error {
	return saveLeave(ctx, v.tx, l)
}

func (v *unitView) GetWaiver(ctx context.Context, id leave.WaiverID) (*leave.Waiver, error) {
	return getWaiver(ctx, v.tx, id)
}

func (v *unitView) WaiversForMember(ctx context.Context, memberID engine.MemberID) ([]leave.Waiver, error) {
	return queryWaivers(ctx, v.tx, `
		SELECT id, member_id, scopes, start_date, end_date, active, source, leave_id, created_at
		FROM waivers WHERE member_id = ? ORDER BY id`, string(memberID))
}

func (v *unitView) SaveWaiver(ctx context.Context, w leave.Waiver) error {
	return saveWaiver(ctx, v.tx, w)
}

func (v *unitView) WithUnit(ctx context.Context, fn func(leave.Store) error) error {
	// Already inside a transaction; run against the same view.
	return fn(v)
}

// Shared leave/waiver SQL helpers, usable from the pool or a transaction.

func saveLeave(ctx context.Context, q queryer, l leave.LeaveOfAbsence) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO leaves (id, member_id, leave_type, start_date, end_date, active,
		                    exempt_from_training_waiver, linked_waiver_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			leave_type = excluded.leave_type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			active = excluded.active,
			exempt_from_training_waiver = excluded.exempt_from_training_waiver,
			linked_waiver_id = excluded.linked_waiver_id`,
		string(l.ID), string(l.MemberID), string(l.Type), l.Start.String(),
		nullableDate(l.End), l.Active, l.ExemptFromTrainingWaiver,
		nullableWaiverID(l.LinkedWaiverID), l.CreatedAt.String())
	return err
}

func getLeave(ctx context.Context, q queryer, id leave.LeaveID) (*leave.LeaveOfAbsence, error) {
	leaves, err := queryLeaves(ctx, q, `
		SELECT id, member_id, leave_type, start_date, end_date, active,
		       exempt_from_training_waiver, linked_waiver_id, created_at
		FROM leaves WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, nil
	}
	return &leaves[0], nil
}

func queryLeaves(ctx context.Context, q queryer, query string, args ...any) ([]leave.LeaveOfAbsence, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leaves []leave.LeaveOfAbsence
	for rows.Next() {
		var (
			l                         leave.LeaveOfAbsence
			id, member, leaveType     string
			start, created            string
			end, linkedWaiver         sql.NullString
		)
		if err := rows.Scan(&id, &member, &leaveType, &start, &end, &l.Active,
			&l.ExemptFromTrainingWaiver, &linkedWaiver, &created); err != nil {
			return nil, err
		}
		l.ID = leave.LeaveID(id)
		l.MemberID = engine.MemberID(member)
		l.Type = leave.LeaveType(leaveType)
		if l.Start, err = engine.ParseDate(start); err != nil {
			return nil, fmt.Errorf("corrupt start_date for leave %s: %w", id, err)
		}
		if l.End, err = parseNullableDate(end); err != nil {
			return nil, fmt.Errorf("corrupt end_date for leave %s: %w", id, err)
		}
		if l.CreatedAt, err = engine.ParseDate(created); err != nil {
			return nil, fmt.Errorf("corrupt created_at for leave %s: %w", id, err)
		}
		if linkedWaiver.Valid {
			wid := leave.WaiverID(linkedWaiver.String)
			l.LinkedWaiverID = &wid
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

func saveWaiver(ctx context.Context, q queryer, w leave.Waiver) error {
	scopes := make([]string, len(w.Scopes))
	for i, s := range w.Scopes {
		scopes[i] = string(s)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO waivers (id, member_id, scopes, start_date, end_date, active, source, leave_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scopes = excluded.scopes,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			active = excluded.active`,
		string(w.ID), string(w.MemberID), strings.Join(scopes, ","), w.Start.String(),
		nullableDate(w.End), w.Active, string(w.Source), nullableLeaveID(w.LeaveID),
		w.CreatedAt.String())
	return err
}

func getWaiver(ctx context.Context, q queryer, id leave.WaiverID) (*leave.Waiver, error) {
	waivers, err := queryWaivers(ctx, q, `
		SELECT id, member_id, scopes, start_date, end_date, active, source, leave_id, created_at
		FROM waivers WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(waivers) == 0 {
		return nil, nil
	}
	return &waivers[0], nil
}

func queryWaivers(ctx context.Context, q queryer, query string, args ...any) ([]leave.Waiver, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var waivers []leave.Waiver
	for rows.Next() {
		var (
			w                           leave.Waiver
			id, member, scopes, source  string
			start, created              string
			end, leaveID                sql.NullString
		)
		if err := rows.Scan(&id, &member, &scopes, &start, &end, &w.Active, &source, &leaveID, &created); err != nil {
			return nil, err
		}
		w.ID = leave.WaiverID(id)
		w.MemberID = engine.MemberID(member)
		w.Source = leave.WaiverSource(source)
		for _, s := range strings.Split(scopes, ",") {
			if s != "" {
				w.Scopes = append(w.Scopes, engine.ObligationScope(s))
			}
		}
		if w.Start, err = engine.ParseDate(start); err != nil {
			return nil, fmt.Errorf("corrupt start_date for waiver %s: %w", id, err)
		}
		if w.End, err = parseNullableDate(end); err != nil {
			return nil, fmt.Errorf("corrupt end_date for waiver %s: %w", id, err)
		}
		if w.CreatedAt, err = engine.ParseDate(created); err != nil {
			return nil, fmt.Errorf("corrupt created_at for waiver %s: %w", id, err)
		}
		if leaveID.Valid {
			lid := leave.LeaveID(leaveID.String)
			w.LeaveID = &lid
		}
		waivers = append(waivers, w)
	}
	return waivers, rows.Err()
}

// =============================================================================
// ALERT STATES (alerts.StateStore)
// =============================================================================

func (s *Store) GetAlertState(ctx context.Context, certID engine.CertificationID, expiry engine.Date) (*alerts.AlertState, error) {
	var (
		state         alerts.AlertState
		member        string
		tier          int
		expiryStr     string
		updatedAtStr  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT member_id, expiry, last_tier, updated_at
		FROM alert_states WHERE certification_id = ? AND expiry = ?`,
		string(certID), expiry.String()).Scan(&member, &expiryStr, &tier, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state.CertificationID = certID
	state.MemberID = engine.MemberID(member)
	state.LastTier = alerts.Tier(tier)
	if state.Expiry, err = engine.ParseDate(expiryStr); err != nil {
		return nil, fmt.Errorf("corrupt expiry for alert state %s: %w", certID, err)
	}
	if state.UpdatedAt, err = engine.ParseDate(updatedAtStr); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for alert state %s: %w", certID, err)
	}
	return &state, nil
}

// AdvanceAlertTier is a single conditional upsert: the row only moves to a
// strictly later tier, so concurrent sweeps converge with one winner.
func (s *Store) AdvanceAlertTier(ctx context.Context, state alerts.AlertState) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_states (certification_id, expiry, member_id, last_tier, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(certification_id, expiry) DO UPDATE SET
			last_tier = excluded.last_tier,
			updated_at = excluded.updated_at
		WHERE alert_states.last_tier < excluded.last_tier`,
		string(state.CertificationID), state.Expiry.String(), string(state.MemberID),
		int(state.LastTier), state.UpdatedAt.String())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListAlertStates(ctx context.Context) ([]alerts.AlertState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT certification_id, expiry, member_id, last_tier, updated_at
		FROM alert_states ORDER BY certification_id, expiry`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []alerts.AlertState
	for rows.Next() {
		var (
			state                  alerts.AlertState
			cert, member           string
			tier                   int
			expiryStr, updatedStr  string
		)
		if err := rows.Scan(&cert, &expiryStr, &member, &tier, &updatedStr); err != nil {
			return nil, err
		}
		state.CertificationID = engine.CertificationID(cert)
		state.MemberID = engine.MemberID(member)
		state.LastTier = alerts.Tier(tier)
		if state.Expiry, err = engine.ParseDate(expiryStr); err != nil {
			return nil, fmt.Errorf("corrupt expiry for alert state %s: %w", cert, err)
		}
		if state.UpdatedAt, err = engine.ParseDate(updatedStr); err != nil {
			return nil, fmt.Errorf("corrupt updated_at for alert state %s: %w", cert, err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// =============================================================================
// NULLABLE HELPERS
// =============================================================================

func nullableDate(d *engine.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullableDate(s sql.NullString) (*engine.Date, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := engine.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableWaiverID(id *leave.WaiverID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullableLeaveID(id *leave.LeaveID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}
