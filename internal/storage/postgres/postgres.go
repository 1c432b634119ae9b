package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/14kear/voteGateBot/internal/entity"
	"github.com/14kear/voteGateBot/internal/storage"
	"github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(postgresURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveUser creates the user on first contact. Repeated calls for the same id
// are no-ops so every inbound event can upsert without a pre-check.
func (s *Storage) SaveUser(ctx context.Context, user entity.User) error {
	const op = "storage.postgres.SaveUser"

	query := `INSERT INTO users (id, username, first_name) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.FirstName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) SaveUserPhone(ctx context.Context, userID int64, encryptedPhone []byte) error {
	const op = "storage.postgres.SaveUserPhone"

	res, err := s.db.ExecContext(ctx, "UPDATE users SET phone_encrypted = $1 WHERE id = $2", encryptedPhone, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

func (s *Storage) GetUserIDs(ctx context.Context) ([]int64, error) {
	const op = "storage.postgres.GetUserIDs"

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}

// SavePoll inserts a poll. When active is true the insert and the deactivation
// of every other poll happen in one transaction, so readers never observe two
// active polls.
func (s *Storage) SavePoll(ctx context.Context, question string, options []entity.PollOption, adminID int64, active bool) (entity.Poll, error) {
	const op = "storage.postgres.SavePoll"

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if active {
		if _, err := tx.ExecContext(ctx, "UPDATE polls SET is_active = FALSE WHERE is_active"); err != nil {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	query := `INSERT INTO polls (question, options, is_active, created_by) VALUES ($1, $2, $3, $4) RETURNING id, created_at`

	poll := entity.Poll{Question: question, Options: options, IsActive: active, CreatedBy: adminID}
	if err := tx.QueryRowContext(ctx, query, question, optionsJSON, active, adminID).Scan(&poll.ID, &poll.CreatedAt); err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (s *Storage) GetPollByID(ctx context.Context, id int64) (entity.Poll, error) {
	const op = "storage.postgres.GetPollByID"

	query := `SELECT id, question, options, is_active, created_by, created_at FROM polls WHERE id = $1`

	poll, err := scanPoll(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

// GetActivePoll returns the most recently created active poll.
func (s *Storage) GetActivePoll(ctx context.Context) (entity.Poll, error) {
	const op = "storage.postgres.GetActivePoll"

	query := `SELECT id, question, options, is_active, created_by, created_at FROM polls WHERE is_active ORDER BY created_at DESC LIMIT 1`

	poll, err := scanPoll(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (s *Storage) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	const op = "storage.postgres.GetPolls"

	query := `SELECT id, question, options, is_active, created_by, created_at FROM polls ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var polls []entity.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		polls = append(polls, poll)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return polls, nil
}

// SetPollActive flips the active flag. Activation clears the flag on every
// other poll inside the same transaction (single-active-poll invariant).
func (s *Storage) SetPollActive(ctx context.Context, pollID int64, active bool) (entity.Poll, error) {
	const op = "storage.postgres.SetPollActive"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if active {
		if _, err := tx.ExecContext(ctx, "UPDATE polls SET is_active = FALSE WHERE is_active AND id <> $1", pollID); err != nil {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	query := `UPDATE polls SET is_active = $2 WHERE id = $1 RETURNING id, question, options, is_active, created_by, created_at`

	poll, err := scanPoll(tx.QueryRowContext(ctx, query, pollID, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (s *Storage) HasVoted(ctx context.Context, userID, pollID int64) (bool, error) {
	const op = "storage.postgres.HasVoted"

	query := `SELECT EXISTS(SELECT 1 FROM votes WHERE user_id = $1 AND poll_id = $2)`

	var voted bool
	if err := s.db.QueryRowContext(ctx, query, userID, pollID).Scan(&voted); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return voted, nil
}

func (s *Storage) SaveVote(ctx context.Context, userID, pollID int64, optionKey string) (entity.Vote, error) {
	const op = "storage.postgres.SaveVote"

	query := `INSERT INTO votes (user_id, poll_id, option_key) VALUES ($1, $2, $3) RETURNING id, created_at`

	vote := entity.Vote{UserID: userID, PollID: pollID, OptionKey: optionKey}
	err := s.db.QueryRowContext(ctx, query, userID, pollID, optionKey).Scan(&vote.ID, &vote.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return entity.Vote{}, fmt.Errorf("%s: %w", op, storage.ErrDuplicateVote)
		}
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}

	return vote, nil
}

// GetPollResults aggregates vote counts grouped by option key. Keys with zero
// votes are absent; callers merge against the poll's option list for display.
func (s *Storage) GetPollResults(ctx context.Context, pollID int64) (map[string]int64, error) {
	const op = "storage.postgres.GetPollResults"

	query := `SELECT option_key, COUNT(id) FROM votes WHERE poll_id = $1 GROUP BY option_key`

	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	results := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		results[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (entity.Poll, error) {
	var poll entity.Poll
	var optionsJSON []byte

	if err := row.Scan(&poll.ID, &poll.Question, &optionsJSON, &poll.IsActive, &poll.CreatedBy, &poll.CreatedAt); err != nil {
		return entity.Poll{}, err
	}

	if err := json.Unmarshal(optionsJSON, &poll.Options); err != nil {
		return entity.Poll{}, err
	}

	return poll, nil
}
