package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("open: %w", &Error{Kind: ErrOrderRejected, Op: "place order", Reason: "INSUFFICIENT_MARGIN", Status: 400})
	assert.ErrorIs(t, err, ErrOrderRejected)
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "INSUFFICIENT_MARGIN", Reason(err))
	assert.False(t, StatusUnknown(err))
	assert.Contains(t, err.Error(), "INSUFFICIENT_MARGIN")
	assert.Contains(t, err.Error(), "http 400")

	netErr := &Error{Kind: ErrNetwork, Op: "place order", Err: context.DeadlineExceeded}
	assert.True(t, StatusUnknown(netErr))
	assert.True(t, errors.Is(netErr, context.DeadlineExceeded))
	assert.Equal(t, "", Reason(errors.New("plain")))

	notSent := &Error{Kind: ErrNotSent, Op: "place order", Err: context.DeadlineExceeded}
	assert.False(t, StatusUnknown(notSent))
	assert.NotErrorIs(t, notSent, ErrNetwork)
	assert.True(t, StatusUnknown(fmt.Errorf("submit: %w", context.DeadlineExceeded)))
}
