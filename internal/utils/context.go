package utils

import "context"

type sessionKey struct{}

// Session is the caller as recorded in a verified token. AccountID is
// already in canonical form.
type Session struct {
	AccountID string
	Role      string
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns false for anonymous requests.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.AccountID != ""
}
