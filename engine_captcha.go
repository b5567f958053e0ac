package adminauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/adminauth/internal"
	"github.com/MrEthical07/adminauth/internal/stores"
)

// CaptchaIssue creates a single-use challenge. When the gate is disabled it
// returns a Captcha with Enabled false and stores nothing.
func (e *Engine) CaptchaIssue(ctx context.Context) (*Captcha, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.Captcha.Enabled {
		return &Captcha{Enabled: false}, nil
	}
	if err := e.throttleIssue(ctx, "captcha"); err != nil {
		return nil, err
	}

	challenge, err := internal.NewChallenge(e.config.Captcha.Length)
	if err != nil {
		return nil, err
	}
	image, err := e.captchaRenderer.Render(challenge)
	if err != nil {
		return nil, fmt.Errorf("render captcha: %w", err)
	}

	id := internal.CompactUUID()
	if err := e.captchaStore.Issue(ctx, id, challenge, e.config.Captcha.TTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	e.metricInc(MetricCaptchaIssued)

	return &Captcha{
		Enabled:   true,
		UUID:      id,
		Challenge: challenge,
		Image:     image,
	}, nil
}

// CaptchaValidate consumes the challenge id and reports whether answer
// matched, ignoring case. The challenge is gone after the first call.
func (e *Engine) CaptchaValidate(ctx context.Context, id, answer string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	return e.consumeCaptcha(ctx, id, answer)
}

func (e *Engine) consumeCaptcha(ctx context.Context, id, answer string) (bool, error) {
	return consumeCode(ctx, e.captchaStore, id, answer)
}

func consumeCode(ctx context.Context, store *stores.OneTimeCodeStore, id, answer string) (bool, error) {
	if id == "" {
		return false, nil
	}
	err := store.Consume(ctx, id, answer)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, stores.ErrCodeNotFound), errors.Is(err, stores.ErrCodeMismatch):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
}
