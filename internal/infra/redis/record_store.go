package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"docquiz/internal/domain"
)

// RecordStore keeps timer records in Redis so a restarted client resumes its
// countdown instead of starting over. Records expire on their own after the
// TTL in case the client never comes back to clear them.
type RecordStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRecordStore(client *redis.Client, ttl time.Duration) *RecordStore {
	return &RecordStore{client: client, ttl: ttl}
}

func (s *RecordStore) Load(ctx context.Context, identity string) (domain.TimerRecord, bool, error) {
	raw, err := s.client.Get(ctx, s.key(identity)).Result()
	if err == redis.Nil {
		return domain.TimerRecord{}, false, nil
	}
	if err != nil {
		return domain.TimerRecord{}, false, err
	}
	startMS, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.TimerRecord{}, false, err
	}
	return domain.TimerRecord{Identity: identity, StartEpochMS: startMS}, true, nil
}

func (s *RecordStore) Save(ctx context.Context, record domain.TimerRecord) error {
	value := strconv.FormatInt(record.StartEpochMS, 10)
	return s.client.Set(ctx, s.key(record.Identity), value, s.ttl).Err()
}

func (s *RecordStore) Clear(ctx context.Context, identity string) error {
	return s.client.Del(ctx, s.key(identity)).Err()
}

func (s *RecordStore) key(identity string) string {
	return "quiz:timer:" + identity
}
