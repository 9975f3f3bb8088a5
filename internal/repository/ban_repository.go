package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"focusbot/internal/model"
)

// BanRepository stores members who may not post a status.
type BanRepository struct {
	db *sql.DB
}

func NewBanRepository(db *sql.DB) *BanRepository {
	return &BanRepository{db: db}
}

// Ban is idempotent; banning twice keeps the first record.
func (r *BanRepository) Ban(ctx context.Context, ban *model.Ban) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO banned_members (member_id, banned_by, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(member_id) DO NOTHING`,
		ban.MemberID,
		ban.BannedBy,
		ban.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "ban member")
	}
	return nil
}

func (r *BanRepository) Unban(ctx context.Context, memberID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM banned_members WHERE member_id = ?`, memberID)
	if err != nil {
		return errors.Wrap(err, "unban member")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "unban member")
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BanRepository) IsBanned(ctx context.Context, memberID string) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM banned_members WHERE member_id = ?`,
		memberID,
	).Scan(&count); err != nil {
		return false, errors.Wrap(err, "check ban")
	}
	return count > 0, nil
}

func (r *BanRepository) List(ctx context.Context) ([]model.Ban, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT member_id, banned_by, created_at
		 FROM banned_members
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list bans")
	}
	defer rows.Close()

	bans := make([]model.Ban, 0)
	for rows.Next() {
		var ban model.Ban
		var createdAt string
		if err := rows.Scan(&ban.MemberID, &ban.BannedBy, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan ban")
		}
		parsedCreatedAt, err := parseTime(createdAt)
		if err != nil {
			return nil, errors.Wrap(err, "parse ban created_at")
		}
		ban.CreatedAt = parsedCreatedAt
		bans = append(bans, ban)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate bans")
	}
	return bans, nil
}
