package adminauth

import (
	"context"
	"strings"
)

// GuardRequest is the per-request state threaded through a [Pipeline].
// Stages read what earlier stages filled in.
type GuardRequest struct {
	// Authorization is the raw Authorization header value.
	Authorization string
	// Token is the bearer token extracted by [BearerStage].
	Token string
	// Auth is set by [AuthenticateStage]. Auth.RefreshedToken carries the
	// replacement token when the refresh guard minted one.
	Auth *AuthResult
}

// GuardStage is one step of a request guard. Returning an error stops the
// pipeline.
type GuardStage interface {
	Apply(ctx context.Context, e *Engine, req *GuardRequest) error
}

// GuardStageFunc adapts a function to [GuardStage].
type GuardStageFunc func(ctx context.Context, e *Engine, req *GuardRequest) error

func (f GuardStageFunc) Apply(ctx context.Context, e *Engine, req *GuardRequest) error {
	return f(ctx, e, req)
}

// Pipeline runs guard stages in order.
type Pipeline struct {
	engine *Engine
	stages []GuardStage
}

// NewPipeline returns a pipeline over e. With no stages it is equivalent to
// [DefaultStages].
func NewPipeline(e *Engine, stages ...GuardStage) *Pipeline {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	return &Pipeline{engine: e, stages: append([]GuardStage(nil), stages...)}
}

// DefaultStages is bearer extraction followed by authentication.
func DefaultStages() []GuardStage {
	return []GuardStage{BearerStage(), AuthenticateStage()}
}

// Run evaluates every stage against the Authorization header value. The
// returned request is non-nil even on error so callers can still forward a
// refreshed token minted before a later stage rejected the request.
func (p *Pipeline) Run(ctx context.Context, authorization string) (*GuardRequest, error) {
	req := &GuardRequest{Authorization: authorization}
	if p == nil || !p.engine.ready() {
		return req, ErrEngineNotReady
	}
	for _, stage := range p.stages {
		if err := stage.Apply(ctx, p.engine, req); err != nil {
			return req, err
		}
	}
	return req, nil
}

// BearerStage extracts the token from a "Bearer <token>" header. A header
// without the scheme is taken as the bare token.
func BearerStage() GuardStage {
	return GuardStageFunc(func(_ context.Context, _ *Engine, req *GuardRequest) error {
		token, ok := BearerToken(req.Authorization)
		if !ok {
			return ErrUnauthorized
		}
		req.Token = token
		return nil
	})
}

// AuthenticateStage validates req.Token and runs the refresh guard.
func AuthenticateStage() GuardStage {
	return GuardStageFunc(func(ctx context.Context, e *Engine, req *GuardRequest) error {
		res, err := e.Authenticate(ctx, req.Token)
		if err != nil {
			return err
		}
		req.Auth = res
		return nil
	})
}

// PermissionStage requires the authenticated user to hold perm. It must run
// after [AuthenticateStage].
func PermissionStage(perm string) GuardStage {
	return GuardStageFunc(func(ctx context.Context, e *Engine, req *GuardRequest) error {
		if req.Auth == nil {
			return ErrUnauthorized
		}
		return e.RequirePermission(ctx, req.Auth.Identity.UserID, perm)
	})
}

// BearerToken returns the token of an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		header = strings.TrimSpace(header[7:])
	}
	if header == "" {
		return "", false
	}
	return header, true
}
