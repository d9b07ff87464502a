package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deepscribe/researchd/internal/research"
)

const (
	sessionKeyPrefix = "session:"
	reportKeyPrefix  = "report:"
	sessionIndexKey  = "sessions"
)

// RedisStore keeps sessions and reports as JSON values with a shared TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, sess research.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sess.ID, payload, s.ttl)
	pipe.SAdd(ctx, sessionIndexKey, sess.ID)
	pipe.Expire(ctx, sessionIndexKey, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (research.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return research.Session{}, ErrNotFound
	}
	if err != nil {
		return research.Session{}, err
	}
	var sess research.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return research.Session{}, err
	}
	return sess, nil
}

func (s *RedisStore) ListSessions(ctx context.Context) ([]research.Session, error) {
	ids, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, err
	}
	sessions := make([]research.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if err == ErrNotFound {
			// Expired value still indexed; drop it lazily.
			s.client.SRem(ctx, sessionIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *RedisStore) SaveReport(ctx context.Context, report research.ResearchReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, reportKeyPrefix+report.SessionID, payload, s.ttl).Err()
}

func (s *RedisStore) GetReport(ctx context.Context, sessionID string) (research.ResearchReport, error) {
	raw, err := s.client.Get(ctx, reportKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return research.ResearchReport{}, ErrNotFound
	}
	if err != nil {
		return research.ResearchReport{}, err
	}
	var report research.ResearchReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return research.ResearchReport{}, err
	}
	return report, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
