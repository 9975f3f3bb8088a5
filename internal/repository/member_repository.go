package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"focusbot/internal/model"
)

type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, member *model.Member) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO members (id, name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		member.ID,
		member.Name,
		member.PasswordHash,
		member.CreatedAt.UTC().Format(time.RFC3339Nano),
		member.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "create member")
	}
	return nil
}

// GetByName matches names case-insensitively.
func (r *MemberRepository) GetByName(ctx context.Context, name string) (*model.Member, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, name, password_hash, created_at, updated_at
		 FROM members
		 WHERE name = ? COLLATE NOCASE`,
		name,
	)
	return scanMember(row)
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (*model.Member, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, name, password_hash, created_at, updated_at
		 FROM members
		 WHERE id = ?`,
		id,
	)
	return scanMember(row)
}

func scanMember(row *sql.Row) (*model.Member, error) {
	var member model.Member
	var createdAt string
	var updatedAt string
	if err := row.Scan(&member.ID, &member.Name, &member.PasswordHash, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan member")
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, errors.Wrap(err, "parse member created_at")
	}
	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "parse member updated_at")
	}
	member.CreatedAt = parsedCreatedAt
	member.UpdatedAt = parsedUpdatedAt
	return &member, nil
}
