// Package router resolves requests to commands: it authenticates the
// caller, enforces arity, dispatches, and shields the connection from
// command failures.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/personstore/personstore/internal/auth"
	"github.com/personstore/personstore/internal/command"
	"github.com/personstore/personstore/internal/model"
	"github.com/personstore/personstore/internal/store"
)

// Response messages the router emits itself. Authorization failures are
// deliberately uniform: the caller never learns whether the username or
// the password was wrong.
const (
	AuthFailedMessage          = "Authorization failed."
	InsufficientPayloadMessage = "insufficient payload"
	StoreUnavailableMessage    = "database unavailable"
	InvalidDataMessage         = "invalid data"
)

// Router dispatches authenticated requests into the command registry.
type Router struct {
	registry *command.Registry
	creds    *auth.Service
}

// New creates a router over the given registry and credential service.
func New(registry *command.Registry, creds *auth.Service) *Router {
	return &Router{registry: registry, creds: creds}
}

// Route executes one request and always yields a response; per-message
// faults never escape to the connection layer.
func (r *Router) Route(ctx context.Context, req *model.Request) *model.Response {
	if req == nil || req.Command == "" {
		return &model.Response{}
	}

	user, err := r.creds.Authenticate(ctx, req.Credentials)
	if err != nil {
		slog.Warn("authentication lookup failed", "username", req.Credentials.Username, "err", err)
		return &model.Response{Message: StoreUnavailableMessage}
	}
	if user == nil {
		return &model.Response{Message: AuthFailedMessage}
	}

	// Same case-insensitivity as registry lookup.
	if strings.EqualFold(req.Command, "help") {
		return &model.Response{Message: r.registry.HelpText()}
	}

	cmd, ok := r.registry.Lookup(req.Command)
	if !ok {
		return &model.Response{
			Message: fmt.Sprintf("command '%s' not found, type 'help' for help", req.Command),
		}
	}

	if cmd.RequiredPersons > len(req.Persons) {
		return &model.Response{Message: InsufficientPayloadMessage}
	}

	resp, err := cmd.Execute(ctx, req, &command.Session{User: user})
	if err != nil {
		return r.errorResponse(req.Command, err)
	}
	return resp
}

// errorResponse converts a command failure into a normal response. Store
// faults map to their uniform messages; anything else carries its own text.
func (r *Router) errorResponse(cmdName string, err error) *model.Response {
	slog.Warn("command failed", "command", cmdName, "err", err)
	switch {
	case errors.Is(err, store.ErrConstraint):
		return &model.Response{Message: InvalidDataMessage}
	case errors.Is(err, store.ErrUnavailable):
		return &model.Response{Message: StoreUnavailableMessage}
	default:
		return &model.Response{Message: err.Error()}
	}
}
