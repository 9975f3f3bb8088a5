package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"focusbot/internal/model"
)

const templateKeyPrefix = "focusbot:template:"

// RedisTemplateStore keeps settings templates in Redis, one JSON value per
// channel, without expiry.
type RedisTemplateStore struct {
	client *redis.Client
}

func NewRedisTemplateStore(client *redis.Client) *RedisTemplateStore {
	return &RedisTemplateStore{client: client}
}

func templateKey(channelID string) string {
	return templateKeyPrefix + channelID
}

func (s *RedisTemplateStore) Save(ctx context.Context, template *model.SettingsTemplate) error {
	data, err := json.Marshal(template)
	if err != nil {
		return errors.Wrap(err, "failed to marshal template")
	}
	if err := s.client.Set(ctx, templateKey(template.ChannelID), data, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save template")
	}
	return nil
}

func (s *RedisTemplateStore) Get(ctx context.Context, channelID string) (*model.SettingsTemplate, error) {
	data, err := s.client.Get(ctx, templateKey(channelID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get template")
	}

	var template model.SettingsTemplate
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal template")
	}
	return &template, nil
}

func (s *RedisTemplateStore) Delete(ctx context.Context, channelID string) error {
	deleted, err := s.client.Del(ctx, templateKey(channelID)).Result()
	if err != nil {
		return errors.Wrap(err, "failed to delete template")
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}
