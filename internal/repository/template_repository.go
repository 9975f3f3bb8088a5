package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"focusbot/internal/model"
)

// TemplateStore keeps one settings template per channel. Get and Delete
// return ErrNotFound when the channel has none.
type TemplateStore interface {
	Save(ctx context.Context, template *model.SettingsTemplate) error
	Get(ctx context.Context, channelID string) (*model.SettingsTemplate, error)
	Delete(ctx context.Context, channelID string) error
}

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Save(ctx context.Context, template *model.SettingsTemplate) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO settings_templates (channel_id, settings_json, saved_by, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET
			settings_json = excluded.settings_json,
			saved_by = excluded.saved_by,
			updated_at = excluded.updated_at`,
		template.ChannelID,
		string(template.Settings),
		template.SavedBy,
		template.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "save settings template")
	}
	return nil
}

func (r *TemplateRepository) Get(ctx context.Context, channelID string) (*model.SettingsTemplate, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT channel_id, settings_json, saved_by, updated_at
		 FROM settings_templates
		 WHERE channel_id = ?`,
		channelID,
	)

	var template model.SettingsTemplate
	var settingsJSON string
	var updatedAt string
	if err := row.Scan(&template.ChannelID, &settingsJSON, &template.SavedBy, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get settings template")
	}

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "parse template updated_at")
	}
	template.Settings = []byte(settingsJSON)
	template.UpdatedAt = parsedUpdatedAt
	return &template, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, channelID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM settings_templates WHERE channel_id = ?`, channelID)
	if err != nil {
		return errors.Wrap(err, "delete settings template")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete settings template")
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
