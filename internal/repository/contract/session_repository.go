package contract

import "ableton-smart-assistant/pkg/guide/session"

// SessionRepository holds live conversation sessions. Implementations own the
// expiry policy; callers treat a missing session as expired.
type SessionRepository interface {
	Save(sess *session.Session)
	Get(sessionID string) (*session.Session, bool)
	Delete(sessionID string)
}
