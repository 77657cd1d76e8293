package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/survey-cli/internal/model"
)

// SQLiteStore implements DataStore using modernc.org/sqlite. Interviews,
// questions and responses are stored as JSON payloads with the columns the
// queries need lifted out.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS interviews (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	payload    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id           TEXT NOT NULL,
	interview_id TEXT NOT NULL REFERENCES interviews(id),
	ord          REAL NOT NULL,
	archived     INTEGER NOT NULL DEFAULT 0,
	payload      TEXT NOT NULL,
	PRIMARY KEY (id, interview_id)
);

CREATE TABLE IF NOT EXISTS responses (
	id           TEXT NOT NULL,
	interview_id TEXT NOT NULL REFERENCES interviews(id),
	payload      TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (id, interview_id)
);

CREATE INDEX IF NOT EXISTS idx_interviews_project ON interviews(project_id);
CREATE INDEX IF NOT EXISTS idx_questions_interview ON questions(interview_id, ord);
CREATE INDEX IF NOT EXISTS idx_responses_interview ON responses(interview_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM projects WHERE id = ?`, projectID).
		Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", projectID)
	}
	return &p, nil
}

func (s *SQLiteStore) SaveProject(ctx context.Context, p model.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		p.ID, p.Name)
	return eris.Wrapf(err, "sqlite: save project %s", p.ID)
}

func (s *SQLiteStore) GetInterview(ctx context.Context, projectID, interviewID string) (*model.Interview, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM interviews WHERE id = ? AND project_id = ?`,
		interviewID, projectID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "interview %s", interviewID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get interview %s", interviewID)
	}
	var iv model.Interview
	if err := json.Unmarshal([]byte(payload), &iv); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode interview %s", interviewID)
	}
	return &iv, nil
}

func (s *SQLiteStore) SaveInterview(ctx context.Context, iv model.Interview) error {
	payload, err := json.Marshal(iv)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal interview")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interviews (id, project_id, payload) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET project_id = excluded.project_id, payload = excluded.payload`,
		iv.ID, iv.ProjectID, string(payload))
	return eris.Wrapf(err, "sqlite: save interview %s", iv.ID)
}

func (s *SQLiteStore) GetQuestions(ctx context.Context, projectID, interviewID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.payload FROM questions q
		 JOIN interviews i ON i.id = q.interview_id
		 WHERE q.interview_id = ? AND i.project_id = ? AND q.archived = 0
		 ORDER BY q.ord ASC`,
		interviewID, projectID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get questions %s", interviewID)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan question")
		}
		var q model.Question
		if err := json.Unmarshal([]byte(payload), &q); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode question")
		}
		questions = append(questions, q)
	}
	return questions, eris.Wrap(rows.Err(), "sqlite: iterate questions")
}

func (s *SQLiteStore) SaveQuestions(ctx context.Context, projectID, interviewID string, questions []model.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save questions")
	}
	defer tx.Rollback()

	for _, q := range questions {
		payload, err := json.Marshal(q)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal question %s", q.ID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (id, interview_id, ord, archived, payload) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id, interview_id) DO UPDATE SET ord = excluded.ord, archived = excluded.archived, payload = excluded.payload`,
			q.ID, interviewID, q.Order, boolInt(q.Archived), string(payload))
		if err != nil {
			return eris.Wrapf(err, "sqlite: save question %s", q.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save questions")
}

func (s *SQLiteStore) GetResponses(ctx context.Context, projectID, interviewID string) ([]model.Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.payload FROM responses r
		 JOIN interviews i ON i.id = r.interview_id
		 WHERE r.interview_id = ? AND i.project_id = ?
		 ORDER BY r.created_at ASC, r.id ASC`,
		interviewID, projectID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get responses %s", interviewID)
	}
	defer rows.Close()

	var responses []model.Response
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan response")
		}
		var r model.Response
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode response")
		}
		responses = append(responses, r)
	}
	return responses, eris.Wrap(rows.Err(), "sqlite: iterate responses")
}

func (s *SQLiteStore) SaveResponse(ctx context.Context, projectID, interviewID string, resp model.Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal response")
	}
	createdAt := resp.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (id, interview_id, payload, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id, interview_id) DO UPDATE SET payload = excluded.payload`,
		resp.ID, interviewID, string(payload), createdAt)
	return eris.Wrapf(err, "sqlite: save response %s", resp.ID)
}

func (s *SQLiteStore) MarkProofed(ctx context.Context, projectID, interviewID, responseID, questionID, proofedBy string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin proof")
	}
	defer tx.Rollback()

	var payload string
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM responses WHERE id = ? AND interview_id = ?`,
		responseID, interviewID).Scan(&payload)
	if err == sql.ErrNoRows {
		return eris.Wrapf(ErrNotFound, "response %s", responseID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: load response %s", responseID)
	}

	var resp model.Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return eris.Wrapf(err, "sqlite: decode response %s", responseID)
	}
	proofed, err := markAnswerProofed(resp, questionID, proofedBy, at)
	if err != nil {
		return err
	}
	updated, err := json.Marshal(proofed)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal proofed response")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE responses SET payload = ? WHERE id = ? AND interview_id = ?`,
		string(updated), responseID, interviewID); err != nil {
		return eris.Wrapf(err, "sqlite: update response %s", responseID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit proof")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
