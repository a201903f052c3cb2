package channels

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taskboard/realtime/internal/app/identity"
	"github.com/taskboard/realtime/internal/platform/metrics"
)

var (
	// ErrUnauthenticated covers malformed, tampered and expired tokens, and
	// tokens whose subject no longer exists.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbiddenChannel is a valid credential asking for a channel it does
	// not own, or a channel name outside the users.<id> pattern.
	ErrForbiddenChannel = errors.New("forbidden channel")
)

var authDecisions = metrics.NewCounterVec(metrics.Opts{
	Name: "channel_auth_decisions_total",
	Help: "Channel authorization attempts by outcome.",
}, []string{"outcome"})

func init() {
	metrics.Default.MustRegister(authDecisions)
}

// IdentityResolver verifies a bearer token and loads its subject.
type IdentityResolver interface {
	ResolveToken(ctx context.Context, token string) (identity.User, error)
}

// Authorizer decides whether a bearer may subscribe to a private channel.
// The policy is strict: the resolved identity must equal the id embedded in
// the channel name. Merely being authenticated is not enough.
type Authorizer struct {
	Identity IdentityResolver
	Logger   *slog.Logger
}

func NewAuthorizer(resolver IdentityResolver, logger *slog.Logger) *Authorizer {
	return &Authorizer{Identity: resolver, Logger: logger}
}

// Authorize returns nil on grant, ErrUnauthenticated or ErrForbiddenChannel
// on deny. Every attempt is audit-logged; a missing logger never blocks the
// decision.
func (a *Authorizer) Authorize(ctx context.Context, token, channelName string) error {
	user, err := a.Identity.ResolveToken(ctx, token)
	if err != nil {
		a.audit(ctx, "", channelName, "unauthenticated")
		return ErrUnauthenticated
	}

	channelUserID, ok := ParseUserChannel(channelName)
	if !ok {
		a.audit(ctx, user.ID, channelName, "denied")
		return ErrForbiddenChannel
	}
	if channelUserID != user.ID {
		a.audit(ctx, user.ID, channelName, "denied")
		return ErrForbiddenChannel
	}

	a.audit(ctx, user.ID, channelName, "granted")
	return nil
}

func (a *Authorizer) audit(ctx context.Context, userID, channel, outcome string) {
	authDecisions.WithLabelValues(outcome).Inc()
	if a.Logger == nil {
		return
	}
	a.Logger.InfoContext(ctx, "channel authorization",
		"user_id", userID,
		"channel", channel,
		"outcome", outcome,
	)
}
