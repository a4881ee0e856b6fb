package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("login: %w", Unauthorized("User not registered"))

	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "User not registered", MessageOf(err, "fallback"))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Upstream(context.DeadlineExceeded)

	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "Something went wrong", MessageOf(err, ""))
}

func TestMessageOfPlainError(t *testing.T) {
	assert.Equal(t, "fallback", MessageOf(errors.New("boom"), "fallback"))
}
