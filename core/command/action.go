package command

import (
	"context"
	"time"
)

// ActionContext describes the business action a command runs for: which
// facade and action started it and when. It travels explicitly with messages
// and worker tasks instead of living in goroutine-local state.
type ActionContext struct {
	Facade    string    `json:"facade,omitempty"`
	Action    string    `json:"action,omitempty"`
	StartedAt time.Time `json:"started-at"`
}

// NewActionContext creates an ActionContext started now.
func NewActionContext(facade, action string) ActionContext {
	return ActionContext{Facade: facade, Action: action, StartedAt: time.Now()}
}

// IsZero reports whether the action context is unset.
func (a ActionContext) IsZero() bool {
	return a.Facade == "" && a.Action == "" && a.StartedAt.IsZero()
}

// Name returns "facade.action", or whichever part is set.
func (a ActionContext) Name() string {
	switch {
	case a.Facade == "":
		return a.Action
	case a.Action == "":
		return a.Facade
	}
	return a.Facade + "." + a.Action
}

type actionCtx struct{}

// WithActionContext attaches the action context to ctx.
func WithActionContext(ctx context.Context, a ActionContext) context.Context {
	return context.WithValue(ctx, actionCtx{}, a)
}

// ActionContextFrom extracts the action context from ctx.
func ActionContextFrom(ctx context.Context) (ActionContext, bool) {
	a, ok := ctx.Value(actionCtx{}).(ActionContext)
	return a, ok
}

type correlationIDCtx struct{}

// WithCorrelationID attaches the correlation id of an in-flight message to ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDCtx{}, id)
}

// CorrelationID extracts the correlation id from ctx.
// Returns empty string if not present.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDCtx{}).(string); ok {
		return id
	}
	return ""
}
