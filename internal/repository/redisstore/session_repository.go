// Package redisstore is the Redis-backed session repository, used instead of
// the in-process cache when REDIS_URL is configured so sessions survive
// restarts and can be shared across instances.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ableton-smart-assistant/pkg/guide/session"
)

const sessionTTL = 1 * time.Hour

type SessionRepository struct {
	rdb *redis.Client
}

func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{rdb: rdb}
}

func key(sessionID string) string {
	return "assistant:session:" + sessionID
}

func (r *SessionRepository) Save(sess *session.Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	r.rdb.Set(context.Background(), key(sess.ID), data, sessionTTL)
}

func (r *SessionRepository) Get(sessionID string) (*session.Session, bool) {
	data, err := r.rdb.Get(context.Background(), key(sessionID)).Bytes()
	if err != nil {
		return nil, false
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, false
	}
	return &sess, true
}

func (r *SessionRepository) Delete(sessionID string) {
	r.rdb.Del(context.Background(), key(sessionID))
}
