package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for ledger entities that
// the reconciliation run reads and writes. Payment confirmation mutates loans
// and member balances through its own transactional repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListMemberIDs returns every member id.
func (r *Repository) ListMemberIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM members ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MembersMissingSavingOn returns ids of members with no saving row dated day.
func (r *Repository) MembersMissingSavingOn(ctx context.Context, day time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id
		FROM members m
		WHERE NOT EXISTS (
			SELECT 1 FROM savings s WHERE s.member_id = m.id AND s.date = $1
		)
		ORDER BY m.id`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertBackfillSaving inserts a zero-value placeholder row for a member and
// date. The (member_id, date) unique constraint makes re-runs no-ops.
func (r *Repository) InsertBackfillSaving(ctx context.Context, memberID int64, day time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO savings (date, member_id, saving_type_id, number_of_shares, share_value, amount, recorder_id, created_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, NOW())
		ON CONFLICT (member_id, date) DO NOTHING`,
		day, memberID, BackfillTypeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// InsertPenalty records a fine. Re-running the job for the same day does not
// duplicate penalties.
func (r *Repository) InsertPenalty(ctx context.Context, p Penalty) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO penalties (member_id, date, amount, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (member_id, date) DO NOTHING`,
		p.MemberID, p.Date, p.Amount, p.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// HasSavingOn reports whether the member has a real saving row dated day.
// Backfill placeholders do not count, so a re-run over an already backfilled
// day still assesses the same penalties.
func (r *Repository) HasSavingOn(ctx context.Context, memberID int64, day time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM savings WHERE member_id = $1 AND date = $2 AND saving_type_id <> $3)`,
		memberID, day, BackfillTypeID,
	).Scan(&exists)
	return exists, err
}
