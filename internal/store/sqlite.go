package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/practice-metrics/internal/model"
)

// sqlQuerier is the query surface shared by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// runs and tests; timestamps are stored in UTC.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied by the driver to every pooled connection.
// foreign_keys is per-connection in SQLite and off by default, so the
// ON DELETE CASCADE clauses below depend on it.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteDSN appends the connection pragmas to dsn as _pragma parameters.
func sqliteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// NewSQLite opens a SQLite database at the given path in WAL mode with
// foreign keys enforced.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: configure connection")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS matters (
	id         TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	progress   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	matter_id    TEXT NOT NULL REFERENCES matters(id) ON DELETE CASCADE,
	label        TEXT NOT NULL DEFAULT '',
	stage        TEXT NOT NULL,
	weight       REAL NOT NULL CHECK (weight > 0),
	status       TEXT NOT NULL DEFAULT 'Not Started',
	due_date     DATETIME,
	completed_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS billing_records (
	id                  TEXT PRIMARY KEY,
	matter_id           TEXT NOT NULL UNIQUE REFERENCES matters(id) ON DELETE CASCADE,
	rate_value          REAL,
	hours_logged_manual REAL,
	hours_logged_auto   REAL,
	total_billed        REAL,
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS risk_assessments (
	matter_id         TEXT PRIMARY KEY REFERENCES matters(id) ON DELETE CASCADE,
	risk_score        REAL NOT NULL,
	compliance_status TEXT NOT NULL DEFAULT '',
	assessed_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS profiles (
	id                TEXT PRIMARY KEY,
	first_name        TEXT,
	last_name         TEXT,
	email             TEXT,
	phone_number      TEXT,
	firm_name         TEXT,
	specialization    TEXT,
	years_of_practice INTEGER,
	address           TEXT,
	home_address      TEXT,
	gender            TEXT,
	role_id           TEXT,
	avatar_url        TEXT
);

CREATE TABLE IF NOT EXISTS professional_ids (
	id              TEXT PRIMARY KEY,
	profile_id      TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	country         TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	professional_id TEXT NOT NULL DEFAULT '',
	certifications  TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS client_feedback (
	id         TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	rating     REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS user_metrics (
	profile_id         TEXT PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
	workflow_score     INTEGER NOT NULL DEFAULT 0,
	profile_completion INTEGER NOT NULL DEFAULT 0,
	client_feedback    REAL NOT NULL DEFAULT 0,
	productivity       INTEGER NOT NULL DEFAULT 0,
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_matters_profile_id ON matters(profile_id);
CREATE INDEX IF NOT EXISTS idx_tasks_matter_id ON tasks(matter_id);
CREATE INDEX IF NOT EXISTS idx_professional_ids_profile_id ON professional_ids(profile_id);
CREATE INDEX IF NOT EXISTS idx_client_feedback_profile_created ON client_feedback(profile_id, created_at);
`

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetTasks(ctx context.Context, matterID string) ([]model.Task, error) {
	return sqliteGetTasks(ctx, s.db, matterID)
}

func sqliteGetTasks(ctx context.Context, q sqlQuerier, matterID string) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE matter_id = ? ORDER BY created_at, id`,
		matterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get tasks %s", matterID)
	}
	return scanTaskRows(rows)
}

func scanTaskRows(rows *sql.Rows) ([]model.Task, error) {
	defer rows.Close() //nolint:errcheck

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		var stage, status string
		var due, completed sql.NullTime
		if err := rows.Scan(&t.ID, &t.MatterID, &t.Label, &stage, &t.Weight, &status,
			&due, &completed, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task")
		}
		t.Stage = model.Stage(stage)
		t.Status = model.TaskStatus(status)
		t.DueDate = nullTime(due)
		t.CompletedAt = nullTime(completed)
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: iterate tasks")
}

func (s *SQLiteStore) GetBillingRecord(ctx context.Context, matterID string) (*model.BillingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, matter_id, rate_value, hours_logged_manual, hours_logged_auto, total_billed, updated_at
		 FROM billing_records WHERE matter_id = ?`,
		matterID,
	)
	b, err := scanBillingRecord(row)
	if err != nil {
		return nil, notFound(err, "sqlite: get billing record %s", matterID)
	}
	return b, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBillingRecord(row scannable) (*model.BillingRecord, error) {
	var b model.BillingRecord
	var rate, manual, auto, billed sql.NullFloat64
	if err := row.Scan(&b.ID, &b.MatterID, &rate, &manual, &auto, &billed, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.RateValue = nullFloat(rate)
	b.HoursLoggedManual = nullFloat(manual)
	b.HoursLoggedAuto = nullFloat(auto)
	b.TotalBilled = nullFloat(billed)
	return &b, nil
}

func (s *SQLiteStore) GetRiskAssessment(ctx context.Context, matterID string) (*model.RiskAssessment, error) {
	var r model.RiskAssessment
	err := s.db.QueryRowContext(ctx,
		`SELECT matter_id, risk_score, compliance_status, assessed_at FROM risk_assessments WHERE matter_id = ?`,
		matterID,
	).Scan(&r.MatterID, &r.RiskScore, &r.ComplianceStatus, &r.AssessedAt)
	if err != nil {
		return nil, notFound(err, "sqlite: get risk assessment %s", matterID)
	}
	return &r, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, profileID string) (*model.Profile, error) {
	var p model.Profile
	var years sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, ''),
		        COALESCE(phone_number, ''), COALESCE(firm_name, ''), COALESCE(specialization, ''),
		        years_of_practice, COALESCE(address, ''), COALESCE(home_address, ''),
		        COALESCE(gender, ''), COALESCE(role_id, ''), COALESCE(avatar_url, '')
		 FROM profiles WHERE id = ?`,
		profileID,
	).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber, &p.FirmName, &p.Specialization,
		&years, &p.Address, &p.HomeAddress, &p.Gender, &p.RoleID, &p.AvatarURL)
	if err != nil {
		return nil, notFound(err, "sqlite: get profile %s", profileID)
	}
	if years.Valid {
		y := int(years.Int64)
		p.YearsOfPractice = &y
	}
	return &p, nil
}

func (s *SQLiteStore) GetProfessionalIDs(ctx context.Context, profileID string) ([]model.ProfessionalID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile_id, country, state, professional_id, certifications
		 FROM professional_ids WHERE profile_id = ? ORDER BY id`,
		profileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get professional ids %s", profileID)
	}
	defer rows.Close() //nolint:errcheck

	ids := []model.ProfessionalID{}
	for rows.Next() {
		var p model.ProfessionalID
		var certs string
		if err := rows.Scan(&p.ID, &p.ProfileID, &p.Country, &p.State, &p.ProfessionalID, &certs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan professional id")
		}
		if certs != "" {
			if err := json.Unmarshal([]byte(certs), &p.Certifications); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal certifications %s", p.ID)
			}
		}
		ids = append(ids, p)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate professional ids")
}

func (s *SQLiteStore) GetFeedback(ctx context.Context, profileID string, limit int) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile_id, rating, created_at FROM client_feedback
		 WHERE profile_id = ? ORDER BY created_at DESC LIMIT ?`,
		profileID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get feedback %s", profileID)
	}
	defer rows.Close() //nolint:errcheck

	feedback := []model.Feedback{}
	for rows.Next() {
		var f model.Feedback
		if err := rows.Scan(&f.ID, &f.ProfileID, &f.Rating, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feedback")
		}
		feedback = append(feedback, f)
	}
	return feedback, eris.Wrap(rows.Err(), "sqlite: iterate feedback")
}

func (s *SQLiteStore) GetMatter(ctx context.Context, matterID string) (*model.Matter, error) {
	var m model.Matter
	var progressJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, profile_id, title, progress, created_at, updated_at FROM matters WHERE id = ?`,
		matterID,
	).Scan(&m.ID, &m.ProfileID, &m.Title, &progressJSON, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "sqlite: get matter %s", matterID)
	}
	if progressJSON.Valid && progressJSON.String != "" {
		m.Progress = &model.Progress{}
		if err := json.Unmarshal([]byte(progressJSON.String), m.Progress); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal progress %s", matterID)
		}
	}
	return &m, nil
}

func (s *SQLiteStore) ListProfileTasks(ctx context.Context, profileID string, since time.Time) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.matter_id, t.label, t.stage, t.weight, t.status, t.due_date, t.completed_at, t.created_at
		 FROM tasks t JOIN matters m ON m.id = t.matter_id
		 WHERE m.profile_id = ? ORDER BY t.created_at, t.id`,
		profileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list profile tasks %s", profileID)
	}
	tasks, err := scanTaskRows(rows)
	if err != nil || since.IsZero() {
		return tasks, err
	}

	// Text timestamps do not compare reliably in SQL, so the window is
	// applied after scanning.
	kept := tasks[:0]
	for _, t := range tasks {
		if t.CompletedAt == nil || !t.CompletedAt.Before(since) {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

func (s *SQLiteStore) ListBillingRecords(ctx context.Context, profileID string) ([]model.BillingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.matter_id, b.rate_value, b.hours_logged_manual, b.hours_logged_auto, b.total_billed, b.updated_at
		 FROM billing_records b JOIN matters m ON m.id = b.matter_id
		 WHERE m.profile_id = ? ORDER BY b.matter_id`,
		profileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list billing records %s", profileID)
	}
	defer rows.Close() //nolint:errcheck

	records := []model.BillingRecord{}
	for rows.Next() {
		b, err := scanBillingRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan billing record")
		}
		records = append(records, *b)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate billing records")
}

func (s *SQLiteStore) ListRiskAssessments(ctx context.Context, profileID string) ([]model.RiskAssessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.matter_id, r.risk_score, r.compliance_status, r.assessed_at
		 FROM risk_assessments r JOIN matters m ON m.id = r.matter_id
		 WHERE m.profile_id = ? ORDER BY r.matter_id`,
		profileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list risk assessments %s", profileID)
	}
	defer rows.Close() //nolint:errcheck

	assessments := []model.RiskAssessment{}
	for rows.Next() {
		var r model.RiskAssessment
		if err := rows.Scan(&r.MatterID, &r.RiskScore, &r.ComplianceStatus, &r.AssessedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan risk assessment")
		}
		assessments = append(assessments, r)
	}
	return assessments, eris.Wrap(rows.Err(), "sqlite: iterate risk assessments")
}

func (s *SQLiteStore) SaveMatterProgress(ctx context.Context, matterID string, p model.Progress) error {
	return sqliteSaveMatterProgress(ctx, s.db, matterID, p)
}

func sqliteSaveMatterProgress(ctx context.Context, q sqlQuerier, matterID string, p model.Progress) error {
	progressJSON, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}
	res, err := q.ExecContext(ctx,
		`UPDATE matters SET progress = ?, updated_at = ? WHERE id = ?`,
		string(progressJSON), time.Now().UTC(), matterID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save matter progress %s", matterID)
	}
	return checkRowsAffected(res, "matter", matterID)
}

func (s *SQLiteStore) SaveProfileMetrics(ctx context.Context, m model.ProfileMetrics) error {
	updatedAt := m.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_metrics (profile_id, workflow_score, profile_completion, client_feedback, productivity, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (profile_id) DO UPDATE SET
			workflow_score = excluded.workflow_score,
			profile_completion = excluded.profile_completion,
			client_feedback = excluded.client_feedback,
			productivity = excluded.productivity,
			updated_at = excluded.updated_at`,
		m.ProfileID, m.WorkflowScore, m.ProfileCompletion, m.ClientFeedback, m.Productivity, updatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save profile metrics %s", m.ProfileID)
}

// GetProfileMetrics returns the persisted metric row for a profile.
func (s *SQLiteStore) GetProfileMetrics(ctx context.Context, profileID string) (*model.ProfileMetrics, error) {
	var m model.ProfileMetrics
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_id, workflow_score, profile_completion, client_feedback, productivity, updated_at
		 FROM user_metrics WHERE profile_id = ?`,
		profileID,
	).Scan(&m.ProfileID, &m.WorkflowScore, &m.ProfileCompletion, &m.ClientFeedback, &m.Productivity, &m.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "sqlite: get profile metrics %s", profileID)
	}
	return &m, nil
}

func (s *SQLiteStore) WithTaskTx(ctx context.Context, fn func(tx TaskTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin task tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteTaskTx{q: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit task tx")
}

type sqliteTaskTx struct {
	q sqlQuerier
}

func (t *sqliteTaskTx) GetTasks(ctx context.Context, matterID string) ([]model.Task, error) {
	return sqliteGetTasks(ctx, t.q, matterID)
}

func (t *sqliteTaskTx) SaveMatterProgress(ctx context.Context, matterID string, p model.Progress) error {
	return sqliteSaveMatterProgress(ctx, t.q, matterID, p)
}

func (t *sqliteTaskTx) InsertTask(ctx context.Context, task model.Task) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.MatterID, task.Label, string(task.Stage), task.Weight, string(task.Status),
		utcPtr(task.DueDate), utcPtr(task.CompletedAt), task.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert task %s", task.ID)
}

func (t *sqliteTaskTx) UpdateTaskStatus(ctx context.Context, matterID, taskID string, status model.TaskStatus, completedAt *time.Time) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ? WHERE id = ? AND matter_id = ?`,
		string(status), utcPtr(completedAt), taskID, matterID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update task status %s", taskID)
	}
	return checkRowsAffected(res, "task", taskID)
}

func (t *sqliteTaskTx) DeleteTask(ctx context.Context, matterID, taskID string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND matter_id = ?`, taskID, matterID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete task %s", taskID)
	}
	return checkRowsAffected(res, "task", taskID)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// utcPtr normalizes an optional timestamp so a nil pointer binds as NULL.
func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
