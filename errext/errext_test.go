package errext

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/quizsmoke/errext/exitcodes"
)

func TestWithHint(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WithHint(nil, "ignored"))

	base := errors.New("chromedriver not found")
	err := WithHint(base, "install chromedriver")
	var hinted HasHint
	require.True(t, errors.As(err, &hinted))
	assert.Equal(t, "install chromedriver", hinted.Hint())
	assert.ErrorIs(t, err, base)

	wrapped := WithHint(fmt.Errorf("provisioning: %w", err), "set QUIZSMOKE_CHROMEDRIVER")
	require.True(t, errors.As(wrapped, &hinted))
	assert.Equal(t, "set QUIZSMOKE_CHROMEDRIVER (install chromedriver)", hinted.Hint())
}

func TestWithExitCodeIfNone(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WithExitCodeIfNone(nil, exitcodes.InvalidConfig))

	err := WithExitCodeIfNone(errors.New("bad"), exitcodes.InvalidConfig)
	var ecerr HasExitCode
	require.True(t, errors.As(err, &ecerr))
	assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())

	again := WithExitCodeIfNone(err, exitcodes.ScenariosHaveFailed)
	require.True(t, errors.As(again, &ecerr))
	assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())
}
