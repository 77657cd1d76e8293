package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements DataStore using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
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
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS interviews (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	payload    JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id           TEXT NOT NULL,
	interview_id TEXT NOT NULL REFERENCES interviews(id),
	ord          DOUBLE PRECISION NOT NULL,
	archived     BOOLEAN NOT NULL DEFAULT false,
	payload      JSONB NOT NULL,
	PRIMARY KEY (id, interview_id)
);

CREATE TABLE IF NOT EXISTS responses (
	id           TEXT NOT NULL,
	interview_id TEXT NOT NULL REFERENCES interviews(id),
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (id, interview_id)
);

CREATE INDEX IF NOT EXISTS idx_interviews_project ON interviews(project_id);
CREATE INDEX IF NOT EXISTS idx_questions_interview ON questions(interview_id, ord);
CREATE INDEX IF NOT EXISTS idx_responses_interview ON responses(interview_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM projects WHERE id = $1`, projectID).
		Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", projectID)
	}
	return &p, nil
}

func (s *PostgresStore) SaveProject(ctx context.Context, p model.Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		p.ID, p.Name)
	return eris.Wrapf(err, "postgres: save project %s", p.ID)
}

func (s *PostgresStore) GetInterview(ctx context.Context, projectID, interviewID string) (*model.Interview, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM interviews WHERE id = $1 AND project_id = $2`,
		interviewID, projectID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "interview %s", interviewID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get interview %s", interviewID)
	}
	var iv model.Interview
	if err := json.Unmarshal(payload, &iv); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode interview %s", interviewID)
	}
	return &iv, nil
}

func (s *PostgresStore) SaveInterview(ctx context.Context, iv model.Interview) error {
	payload, err := json.Marshal(iv)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal interview")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO interviews (id, project_id, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET project_id = EXCLUDED.project_id, payload = EXCLUDED.payload`,
		iv.ID, iv.ProjectID, payload)
	return eris.Wrapf(err, "postgres: save interview %s", iv.ID)
}

func (s *PostgresStore) GetQuestions(ctx context.Context, projectID, interviewID string) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT q.payload FROM questions q
		 JOIN interviews i ON i.id = q.interview_id
		 WHERE q.interview_id = $1 AND i.project_id = $2 AND NOT q.archived
		 ORDER BY q.ord ASC`,
		interviewID, projectID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get questions %s", interviewID)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan question")
		}
		var q model.Question
		if err := json.Unmarshal(payload, &q); err != nil {
			return nil, eris.Wrap(err, "postgres: decode question")
		}
		questions = append(questions, q)
	}
	return questions, eris.Wrap(rows.Err(), "postgres: iterate questions")
}

func (s *PostgresStore) SaveQuestions(ctx context.Context, projectID, interviewID string, questions []model.Question) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save questions")
	}
	defer tx.Rollback(ctx)

	for _, q := range questions {
		payload, err := json.Marshal(q)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal question %s", q.ID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO questions (id, interview_id, ord, archived, payload) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id, interview_id) DO UPDATE SET ord = EXCLUDED.ord, archived = EXCLUDED.archived, payload = EXCLUDED.payload`,
			q.ID, interviewID, q.Order, q.Archived, payload)
		if err != nil {
			return eris.Wrapf(err, "postgres: save question %s", q.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save questions")
}

func (s *PostgresStore) GetResponses(ctx context.Context, projectID, interviewID string) ([]model.Response, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.payload FROM responses r
		 JOIN interviews i ON i.id = r.interview_id
		 WHERE r.interview_id = $1 AND i.project_id = $2
		 ORDER BY r.created_at ASC, r.id ASC`,
		interviewID, projectID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get responses %s", interviewID)
	}
	defer rows.Close()

	var responses []model.Response
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan response")
		}
		var r model.Response
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: decode response")
		}
		responses = append(responses, r)
	}
	return responses, eris.Wrap(rows.Err(), "postgres: iterate responses")
}

func (s *PostgresStore) SaveResponse(ctx context.Context, projectID, interviewID string, resp model.Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal response")
	}
	createdAt := resp.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO responses (id, interview_id, payload, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id, interview_id) DO UPDATE SET payload = EXCLUDED.payload`,
		resp.ID, interviewID, payload, createdAt)
	return eris.Wrapf(err, "postgres: save response %s", resp.ID)
}

func (s *PostgresStore) MarkProofed(ctx context.Context, projectID, interviewID, responseID, questionID, proofedBy string, at time.Time) error {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM responses WHERE id = $1 AND interview_id = $2`,
		responseID, interviewID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "response %s", responseID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: load response %s", responseID)
	}

	var resp model.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return eris.Wrapf(err, "postgres: decode response %s", responseID)
	}
	proofed, err := markAnswerProofed(resp, questionID, proofedBy, at)
	if err != nil {
		return err
	}
	updated, err := json.Marshal(proofed)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal proofed response")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE responses SET payload = $1 WHERE id = $2 AND interview_id = $3`,
		updated, responseID, interviewID)
	return eris.Wrapf(err, "postgres: update response %s", responseID)
}
