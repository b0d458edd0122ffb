package clarify

import (
	"context"
	"errors"

	"github.com/pickpal/pickpal/internal/model"
)

// ErrAnswerTimeout means the user did not answer within the configured
// window. Callers treat it as a skip, never as a request failure.
var ErrAnswerTimeout = errors.New("clarify: answer timed out")

// Channel delivers a clarification request to the user and waits for the
// answer. Implementations must respect ctx cancellation.
type Channel interface {
	Ask(ctx context.Context, req model.ClarificationRequest) (model.ClarificationAnswer, error)
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, req model.ClarificationRequest) (model.ClarificationAnswer, error)

func (f ChannelFunc) Ask(ctx context.Context, req model.ClarificationRequest) (model.ClarificationAnswer, error) {
	return f(ctx, req)
}
