package questionbank

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mcdev12/feud/go/internal/models"
	"github.com/mcdev12/feud/go/internal/sqlutil"
)

// Schema creates the table PostgresSource reads from.
const Schema = `
CREATE TABLE IF NOT EXISTS questions (
    set_name        TEXT    NOT NULL,
    id              TEXT    NOT NULL,
    text            TEXT    NOT NULL,
    round           INTEGER NOT NULL,
    team_assignment TEXT    NOT NULL DEFAULT '',
    question_number INTEGER NOT NULL DEFAULT 0,
    answers         JSONB   NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (set_name, id)
)`

const selectSet = `
SELECT id, text, round, team_assignment, question_number, answers
FROM questions
WHERE set_name = $1
ORDER BY round, team_assignment, question_number`

const upsertQuestion = `
INSERT INTO questions (
  set_name, id, text, round, team_assignment, question_number, answers
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (set_name, id) DO UPDATE SET
  text = EXCLUDED.text,
  round = EXCLUDED.round,
  team_assignment = EXCLUDED.team_assignment,
  question_number = EXCLUDED.question_number,
  answers = EXCLUDED.answers
RETURNING (xmax = 0)`

// Querier defines what the Postgres source needs from the database.
// *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSource reads question sets from the questions table.
type PostgresSource struct {
	db Querier
}

// NewPostgresSource creates a new Postgres-backed source
func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// EnsureSchema creates the questions table if it does not exist.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create questions table: %w", err)
	}
	return nil
}

// Questions loads every row of set ordered toss-up first, then by round, team
// and slot.
func (s *PostgresSource) Questions(ctx context.Context, set string) ([]models.Question, error) {
	rows, err := s.db.Query(ctx, selectSet, set)
	if err != nil {
		return nil, fmt.Errorf("failed to query question set %q: %w", set, err)
	}
	defer rows.Close()

	var qs []models.Question
	for rows.Next() {
		var (
			q       models.Question
			team    string
			answers []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &q.Round, &team, &q.QuestionNumber, &answers); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		q.TeamAssignment = models.TeamID(team)
		if err := json.Unmarshal(answers, &q.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers of question %q: %w", q.ID, err)
		}
		q.HideAll()
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read question set %q: %w", set, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrSetNotFound, set)
	}
	return qs, nil
}

// SaveResult counts what SaveSet did.
type SaveResult struct {
	Total    int
	Inserted int
	Updated  int
}

// SaveSet upserts every question of set. Rows are keyed by set and question id;
// xmax is zero only for freshly inserted rows. When the database can begin
// transactions the whole set is written in one.
func (s *PostgresSource) SaveSet(ctx context.Context, set string, qs []models.Question) (SaveResult, error) {
	b, ok := s.db.(sqlutil.Beginner)
	if !ok {
		return saveSet(ctx, s.db, set, qs)
	}
	var res SaveResult
	err := sqlutil.Run(ctx, b, func(tx pgx.Tx) Querier { return tx }, func(q Querier) error {
		var err error
		res, err = saveSet(ctx, q, set, qs)
		return err
	})
	if err != nil {
		return SaveResult{Total: len(qs)}, err
	}
	return res, nil
}

func saveSet(ctx context.Context, db Querier, set string, qs []models.Question) (SaveResult, error) {
	res := SaveResult{Total: len(qs)}
	for _, q := range qs {
		cards := make([]models.Answer, len(q.Answers))
		for i, a := range q.Answers {
			cards[i] = models.Answer{Text: a.Text, Score: a.Score}
		}
		answers, err := json.Marshal(cards)
		if err != nil {
			return res, fmt.Errorf("failed to encode answers of question %q: %w", q.ID, err)
		}

		var inserted bool
		err = db.QueryRow(ctx, upsertQuestion,
			set, q.ID, q.Text, q.Round, string(q.TeamAssignment), q.QuestionNumber, answers,
		).Scan(&inserted)
		if err != nil {
			return res, fmt.Errorf("failed to save question %q: %w", q.ID, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}
