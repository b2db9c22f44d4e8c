// Package auditctx carries the member behind a request down to the audit log.
package auditctx

import "context"

// Ways a request can be authenticated.
const (
	ViaSession = "session"
	ViaBearer  = "bearer"
	ViaBot     = "bot"
)

// Actor is the member behind a request, where it came from and how it
// signed in. Bot requests act as the anonymous member.
type Actor struct {
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
	Via       string
}

// IsBot reports whether the request used the shared bot token.
func (a Actor) IsBot() bool {
	return a.Via == ViaBot
}

type actorKey struct{}

// WithActor stores actor on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
