package reconcile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/callscript/internal/platform"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"not found by id",
			NewNotFoundError("application", "", 42),
			"NOT_FOUND: application with id 42 not found",
		},
		{
			"not found by name",
			NewNotFoundError("rule", "inbound", 0),
			`NOT_FOUND: rule "inbound" not found (rule=inbound)`,
		},
		{
			"nothing given",
			NewNotFoundError("application", "", 0),
			"NOT_FOUND: no application name or id given",
		},
		{
			"case collision",
			NewDuplicateNameError("scenario", "Greet", "greet"),
			`DUPLICATE_NAME: scenario names "Greet" and "greet" differ only by case (scenario=greet)`,
		},
		{
			"exact duplicate",
			NewDuplicateNameError("rule", "inbound", "inbound"),
			`DUPLICATE_NAME: rule "inbound" declared more than once (rule=inbound)`,
		},
		{
			"conflict",
			NewConflictError("greet", 101),
			"CONFLICT: remote scenario changed since last sync; use --force to overwrite (scenario=greet, id=101)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	cause := errors.New("tsc exited 2")
	wrapped := fmt.Errorf("upload: %w", NewCompilationError(cause))

	assert.True(t, IsCompilationError(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.False(t, IsConflict(wrapped))

	assert.True(t, IsNotFound(NewNotFoundError("scenario", "greet", 0)))
	assert.True(t, IsDuplicateName(NewDuplicateNameError("scenario", "a", "A")))
	assert.True(t, IsFormatError(NewFormatError("rules", "main", cause)))
	assert.True(t, IsConflict(NewConflictError("greet", 1)))
	assert.False(t, IsNotFound(cause))
}

func TestWrapPlatformError(t *testing.T) {
	t.Run("platform code", func(t *testing.T) {
		apiErr := &platform.APIError{Method: "AddScenarios", Code: 127, Message: "name taken"}
		err := WrapPlatformError("create scenario", "scenario", "greet", apiErr)

		assert.True(t, IsPlatformError(err))
		var target *platform.APIError
		assert.ErrorAs(t, err, &target)
		assert.Equal(t, 127, target.Code)
		assert.Contains(t, err.Error(), "create scenario failed with code 127")
	})

	t.Run("transport failure", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := WrapPlatformError("list rules", "rule", "", cause)

		assert.False(t, IsPlatformError(err))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "list rules: connection refused", err.Error())
	})
}
