package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/practice-metrics/internal/model"
)

// pgQuerier is the query surface shared by a pool and a transaction.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgPool is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type pgPool interface {
	pgQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    pgPool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS matters (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	profile_id TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	progress   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	matter_id    TEXT NOT NULL REFERENCES matters(id) ON DELETE CASCADE,
	label        TEXT NOT NULL DEFAULT '',
	stage        TEXT NOT NULL,
	weight       DOUBLE PRECISION NOT NULL CHECK (weight > 0),
	status       TEXT NOT NULL DEFAULT 'Not Started',
	due_date     TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS billing_records (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	matter_id           TEXT NOT NULL UNIQUE REFERENCES matters(id) ON DELETE CASCADE,
	rate_value          DOUBLE PRECISION,
	hours_logged_manual DOUBLE PRECISION,
	hours_logged_auto   DOUBLE PRECISION,
	total_billed        DOUBLE PRECISION,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS risk_assessments (
	matter_id         TEXT PRIMARY KEY REFERENCES matters(id) ON DELETE CASCADE,
	risk_score        DOUBLE PRECISION NOT NULL,
	compliance_status TEXT NOT NULL DEFAULT '',
	assessed_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	profile_id      TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	country         TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	professional_id TEXT NOT NULL DEFAULT '',
	certifications  TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS client_feedback (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	rating     DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_metrics (
	profile_id         TEXT PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
	workflow_score     INTEGER NOT NULL DEFAULT 0,
	profile_completion INTEGER NOT NULL DEFAULT 0,
	client_feedback    DOUBLE PRECISION NOT NULL DEFAULT 0,
	productivity       INTEGER NOT NULL DEFAULT 0,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_matters_profile_id ON matters(profile_id);
CREATE INDEX IF NOT EXISTS idx_tasks_matter_id ON tasks(matter_id);
CREATE INDEX IF NOT EXISTS idx_professional_ids_profile_id ON professional_ids(profile_id);
CREATE INDEX IF NOT EXISTS idx_client_feedback_profile_created ON client_feedback(profile_id, created_at DESC);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const taskColumns = `id, matter_id, label, stage, weight, status, due_date, completed_at, created_at`

func (s *PostgresStore) GetTasks(ctx context.Context, matterID string) ([]model.Task, error) {
	return pgGetTasks(ctx, s.pool, matterID)
}

func pgGetTasks(ctx context.Context, q pgQuerier, matterID string) ([]model.Task, error) {
	rows, err := q.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE matter_id = $1 ORDER BY created_at, id`,
		matterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get tasks %s", matterID)
	}
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]model.Task, error) {
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		var stage, status string
		if err := rows.Scan(&t.ID, &t.MatterID, &t.Label, &stage, &t.Weight, &status,
			&t.DueDate, &t.CompletedAt, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		t.Stage = model.Stage(stage)
		t.Status = model.TaskStatus(status)
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: iterate tasks")
}

func (s *PostgresStore) GetBillingRecord(ctx context.Context, matterID string) (*model.BillingRecord, error) {
	var b model.BillingRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, matter_id, rate_value, hours_logged_manual, hours_logged_auto, total_billed, updated_at
		 FROM billing_records WHERE matter_id = $1`,
		matterID,
	).Scan(&b.ID, &b.MatterID, &b.RateValue, &b.HoursLoggedManual, &b.HoursLoggedAuto, &b.TotalBilled, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "postgres: get billing record %s", matterID)
	}
	return &b, nil
}

func (s *PostgresStore) GetRiskAssessment(ctx context.Context, matterID string) (*model.RiskAssessment, error) {
	var r model.RiskAssessment
	err := s.pool.QueryRow(ctx,
		`SELECT matter_id, risk_score, compliance_status, assessed_at FROM risk_assessments WHERE matter_id = $1`,
		matterID,
	).Scan(&r.MatterID, &r.RiskScore, &r.ComplianceStatus, &r.AssessedAt)
	if err != nil {
		return nil, notFound(err, "postgres: get risk assessment %s", matterID)
	}
	return &r, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, profileID string) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, ''),
		        COALESCE(phone_number, ''), COALESCE(firm_name, ''), COALESCE(specialization, ''),
		        years_of_practice, COALESCE(address, ''), COALESCE(home_address, ''),
		        COALESCE(gender, ''), COALESCE(role_id, ''), COALESCE(avatar_url, '')
		 FROM profiles WHERE id = $1`,
		profileID,
	).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber, &p.FirmName, &p.Specialization,
		&p.YearsOfPractice, &p.Address, &p.HomeAddress, &p.Gender, &p.RoleID, &p.AvatarURL)
	if err != nil {
		return nil, notFound(err, "postgres: get profile %s", profileID)
	}
	return &p, nil
}

func (s *PostgresStore) GetProfessionalIDs(ctx context.Context, profileID string) ([]model.ProfessionalID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, profile_id, country, state, professional_id, certifications
		 FROM professional_ids WHERE profile_id = $1 ORDER BY id`,
		profileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get professional ids %s", profileID)
	}
	defer rows.Close()

	ids := []model.ProfessionalID{}
	for rows.Next() {
		var p model.ProfessionalID
		if err := rows.Scan(&p.ID, &p.ProfileID, &p.Country, &p.State, &p.ProfessionalID, &p.Certifications); err != nil {
			return nil, eris.Wrap(err, "postgres: scan professional id")
		}
		ids = append(ids, p)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate professional ids")
}

func (s *PostgresStore) GetFeedback(ctx context.Context, profileID string, limit int) ([]model.Feedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, profile_id, rating, created_at FROM client_feedback
		 WHERE profile_id = $1 ORDER BY created_at DESC LIMIT $2`,
		profileID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get feedback %s", profileID)
	}
	defer rows.Close()

	feedback := []model.Feedback{}
	for rows.Next() {
		var f model.Feedback
		if err := rows.Scan(&f.ID, &f.ProfileID, &f.Rating, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feedback")
		}
		feedback = append(feedback, f)
	}
	return feedback, eris.Wrap(rows.Err(), "postgres: iterate feedback")
}

func (s *PostgresStore) GetMatter(ctx context.Context, matterID string) (*model.Matter, error) {
	var m model.Matter
	var progressJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, profile_id, title, progress, created_at, updated_at FROM matters WHERE id = $1`,
		matterID,
	).Scan(&m.ID, &m.ProfileID, &m.Title, &progressJSON, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "postgres: get matter %s", matterID)
	}
	if len(progressJSON) > 0 {
		m.Progress = &model.Progress{}
		if err := json.Unmarshal(progressJSON, m.Progress); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal progress %s", matterID)
		}
	}
	return &m, nil
}

func (s *PostgresStore) ListProfileTasks(ctx context.Context, profileID string, since time.Time) ([]model.Task, error) {
	query := `SELECT t.id, t.matter_id, t.label, t.stage, t.weight, t.status, t.due_date, t.completed_at, t.created_at
		FROM tasks t JOIN matters m ON m.id = t.matter_id WHERE m.profile_id = $1`
	args := []any{profileID}
	if !since.IsZero() {
		query += ` AND (t.completed_at IS NULL OR t.completed_at >= $2)`
		args = append(args, since)
	}
	query += ` ORDER BY t.created_at, t.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list profile tasks %s", profileID)
	}
	return collectTasks(rows)
}

func (s *PostgresStore) ListBillingRecords(ctx context.Context, profileID string) ([]model.BillingRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT b.id, b.matter_id, b.rate_value, b.hours_logged_manual, b.hours_logged_auto, b.total_billed, b.updated_at
		 FROM billing_records b JOIN matters m ON m.id = b.matter_id
		 WHERE m.profile_id = $1 ORDER BY b.matter_id`,
		profileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list billing records %s", profileID)
	}
	defer rows.Close()

	records := []model.BillingRecord{}
	for rows.Next() {
		var b model.BillingRecord
		if err := rows.Scan(&b.ID, &b.MatterID, &b.RateValue, &b.HoursLoggedManual, &b.HoursLoggedAuto,
			&b.TotalBilled, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan billing record")
		}
		records = append(records, b)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate billing records")
}

func (s *PostgresStore) ListRiskAssessments(ctx context.Context, profileID string) ([]model.RiskAssessment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.matter_id, r.risk_score, r.compliance_status, r.assessed_at
		 FROM risk_assessments r JOIN matters m ON m.id = r.matter_id
		 WHERE m.profile_id = $1 ORDER BY r.matter_id`,
		profileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list risk assessments %s", profileID)
	}
	defer rows.Close()

	assessments := []model.RiskAssessment{}
	for rows.Next() {
		var r model.RiskAssessment
		if err := rows.Scan(&r.MatterID, &r.RiskScore, &r.ComplianceStatus, &r.AssessedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan risk assessment")
		}
		assessments = append(assessments, r)
	}
	return assessments, eris.Wrap(rows.Err(), "postgres: iterate risk assessments")
}

func (s *PostgresStore) SaveMatterProgress(ctx context.Context, matterID string, p model.Progress) error {
	return pgSaveMatterProgress(ctx, s.pool, matterID, p)
}

func pgSaveMatterProgress(ctx context.Context, q pgQuerier, matterID string, p model.Progress) error {
	progressJSON, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}
	tag, err := q.Exec(ctx,
		`UPDATE matters SET progress = $1, updated_at = $2 WHERE id = $3`,
		progressJSON, time.Now().UTC(), matterID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save matter progress %s", matterID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: save matter progress %s", matterID)
	}
	return nil
}

func (s *PostgresStore) SaveProfileMetrics(ctx context.Context, m model.ProfileMetrics) error {
	updatedAt := m.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_metrics (profile_id, workflow_score, profile_completion, client_feedback, productivity, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (profile_id) DO UPDATE SET
			workflow_score = EXCLUDED.workflow_score,
			profile_completion = EXCLUDED.profile_completion,
			client_feedback = EXCLUDED.client_feedback,
			productivity = EXCLUDED.productivity,
			updated_at = EXCLUDED.updated_at`,
		m.ProfileID, m.WorkflowScore, m.ProfileCompletion, m.ClientFeedback, m.Productivity, updatedAt,
	)
	return eris.Wrapf(err, "postgres: save profile metrics %s", m.ProfileID)
}

func (s *PostgresStore) WithTaskTx(ctx context.Context, fn func(tx TaskTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin task tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTaskTx{q: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit task tx")
}

type pgTaskTx struct {
	q pgQuerier
}

func (t *pgTaskTx) GetTasks(ctx context.Context, matterID string) ([]model.Task, error) {
	return pgGetTasks(ctx, t.q, matterID)
}

func (t *pgTaskTx) SaveMatterProgress(ctx context.Context, matterID string, p model.Progress) error {
	return pgSaveMatterProgress(ctx, t.q, matterID, p)
}

func (t *pgTaskTx) InsertTask(ctx context.Context, task model.Task) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.MatterID, task.Label, string(task.Stage), task.Weight, string(task.Status),
		task.DueDate, task.CompletedAt, task.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert task %s", task.ID)
}

func (t *pgTaskTx) UpdateTaskStatus(ctx context.Context, matterID, taskID string, status model.TaskStatus, completedAt *time.Time) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE tasks SET status = $1, completed_at = $2 WHERE id = $3 AND matter_id = $4`,
		string(status), completedAt, taskID, matterID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update task status %s", taskID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: task %s", taskID)
	}
	return nil
}

func (t *pgTaskTx) DeleteTask(ctx context.Context, matterID, taskID string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND matter_id = $2`, taskID, matterID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete task %s", taskID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: task %s", taskID)
	}
	return nil
}

// notFound maps a no-rows error to ErrNotFound and wraps anything else.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	return eris.Wrapf(err, format, args...)
}
