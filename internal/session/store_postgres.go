package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess Session) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if sess.AssessmentID == "" {
		return "", fmt.Errorf("assessment_id is required")
	}
	if sess.InviteHash == "" {
		return "", fmt.Errorf("invite_hash is required")
	}

	responses := sess.Responses
	if responses == nil {
		responses = []survey.Response{}
	}
	data, err := json.Marshal(responses)
	if err != nil {
		return "", fmt.Errorf("marshal responses: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO assessment_sessions (id, assessment_id, invite_hash, respondent_email, status, responses)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6::jsonb)
		 RETURNING id::text`,
		uuid.NewString(),
		sess.AssessmentID,
		sess.InviteHash,
		nullIfEmpty(sess.RespondentEmail),
		StatusInProgress,
		string(data),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	return id, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.getSessionByQuery(ctx,
		`SELECT id::text, assessment_id, invite_hash, respondent_email, status, responses, result,
		        started_at, updated_at, submitted_at
		 FROM assessment_sessions
		 WHERE id = $1::uuid`,
		id,
	)
}

func (s *PostgresStore) GetSessionByInvite(ctx context.Context, inviteHash string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.getSessionByQuery(ctx,
		`SELECT id::text, assessment_id, invite_hash, respondent_email, status, responses, result,
		        started_at, updated_at, submitted_at
		 FROM assessment_sessions
		 WHERE invite_hash = $1`,
		inviteHash,
	)
}

func (s *PostgresStore) SaveResponses(ctx context.Context, id string, responses []survey.Response) error {
	if err := checkID(id); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	data, err := json.Marshal(responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET responses = $2::jsonb, updated_at = NOW()
		 WHERE id = $1::uuid AND status = $3`,
		id,
		string(data),
		StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("save responses: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return s.explainMiss(ctx, id)
	}
	return nil
}

func (s *PostgresStore) Submit(ctx context.Context, id string, responses []survey.Response, result report.Result) error {
	if err := checkID(id); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	respData, err := json.Marshal(responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	resultData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET responses = $2::jsonb, result = $3::jsonb, status = $4,
		     updated_at = NOW(), submitted_at = NOW()
		 WHERE id = $1::uuid AND status = $5`,
		id,
		string(respData),
		string(resultData),
		StatusSubmitted,
		StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("submit session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return s.explainMiss(ctx, id)
	}
	return nil
}

// explainMiss distinguishes a missing session from a submitted one after a
// guarded UPDATE touched no rows.
func (s *PostgresStore) explainMiss(ctx context.Context, id string) error {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM assessment_sessions WHERE id = $1::uuid`,
		id,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("lookup session status: %w", err)
	}
	if status == StatusSubmitted {
		return ErrAlreadySubmitted
	}
	return fmt.Errorf("session %s in unexpected status %q", id, status)
}

func (s *PostgresStore) getSessionByQuery(ctx context.Context, query string, args ...any) (*Session, error) {
	sess := &Session{}
	var email *string
	var responses []byte
	var result []byte

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&sess.ID,
		&sess.AssessmentID,
		&sess.InviteHash,
		&email,
		&sess.Status,
		&responses,
		&result,
		&sess.StartedAt,
		&sess.UpdatedAt,
		&sess.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if email != nil {
		sess.RespondentEmail = *email
	}
	sess.Responses = []survey.Response{}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &sess.Responses); err != nil {
			return nil, fmt.Errorf("decode responses: %w", err)
		}
	}
	if len(result) > 0 {
		var r report.Result
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		sess.Result = &r
	}

	return sess, nil
}

// checkID rejects ids that cannot name a row, so a malformed id reads as a
// missing session instead of a uuid cast failure.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
