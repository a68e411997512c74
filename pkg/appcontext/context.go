// Package appcontext carries per-call values through context.Context: the
// ingestion service token and the trigger that started a sync run.
package appcontext

import (
	"context"
	"strings"
)

type contextKey int

const (
	authTokenKey contextKey = iota
	triggerKey
)

// TriggerManual is reported for runs started without WithTrigger, such as the
// sync command.
const TriggerManual = "manual"

// WithAuthToken returns a context carrying token. It overrides the static
// token configured for the ingestion client.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey, strings.TrimSpace(token))
}

// AuthToken returns the token set by WithAuthToken. ok is false when none was
// set or it is blank.
func AuthToken(ctx context.Context) (token string, ok bool) {
	token, _ = ctx.Value(authTokenKey).(string)
	return token, token != ""
}

// WithTrigger names what started the run using ctx (startup, reconnect, timer).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey, trigger)
}

// Trigger returns the name set by WithTrigger, or TriggerManual.
func Trigger(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey).(string); ok && t != "" {
		return t
	}
	return TriggerManual
}
