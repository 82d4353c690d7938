package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/buildcp/internal/builderr"
)

// RequireKind checks that err carries the given failure kind.
func RequireKind(t *testing.T, err error, kind builderr.Kind) *builderr.Error {
	t.Helper()
	require.Error(t, err)
	var be *builderr.Error
	require.ErrorAs(t, err, &be, "expected a %s, got %v", kind, err)
	require.Equal(t, kind, be.Kind, "unexpected failure: %v", err)
	return be
}
