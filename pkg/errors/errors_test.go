package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := NewNotFoundError("worksheet row 'Baseline' not found in worksheet 'ws-1'", "ROW_NOT_FOUND")
	assert.Equal(t, "[ROW_NOT_FOUND] worksheet row 'Baseline' not found in worksheet 'ws-1'", err.Error())

	cause := errors.New("connection reset")
	wrapped := NewAuthenticationError("authentication failed after 10 attempts", "AUTH_EXHAUSTED", cause)
	assert.Equal(t, "[AUTH_EXHAUSTED] authentication failed after 10 attempts: connection reset", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestError_KindMatching(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", NewNotFoundError("x", "X"), IsNotFound},
		{"validation", NewValidationError("x", "X", nil), IsValidation},
		{"invalid argument", NewInvalidArgumentError("x", "X"), IsInvalidArgument},
		{"authentication", NewAuthenticationError("x", "X", nil), IsAuthentication},
		{"unavailable", NewUnavailableError("x", "X", nil), IsUnavailable},
		{"path", &PathError{Op: "write", Path: "a/b", Segment: "b", Reason: "does not exist"}, IsInvalidPath},
		{"incomplete study", &IncompleteStudyError{StudyID: "s1", Succeeded: 3, Total: 4}, IsIncompleteStudy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("outer: %w", tt.err)))
			assert.False(t, IsNotFound(errors.New("plain")))
		})
	}
}

func TestError_KindsDoNotCross(t *testing.T) {
	err := NewValidationError("duplicate configuration types", "DUPLICATE_CONFIG_TYPE", nil)
	assert.False(t, IsNotFound(err))
	assert.False(t, IsInvalidPath(err))
}

func TestPathError_WrappedInError(t *testing.T) {
	pathErr := &PathError{Op: "copy", Path: "chassis/mass", Reason: "not found in source payload"}
	err := NewValidationError("cannot copy path", "COPY_FAILED", pathErr)

	assert.True(t, IsValidation(err))
	assert.True(t, IsInvalidPath(err))

	var target *PathError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "chassis/mass", target.Path)
	assert.Equal(t, "copy 'chassis/mass': not found in source payload", pathErr.Error())
}

func TestIncompleteStudyError_Message(t *testing.T) {
	err := &IncompleteStudyError{StudyID: "study-9", Succeeded: 7, Total: 10}
	assert.Equal(t, "not all simulations in study 'study-9' succeeded: succeeded 7, total 10", err.Error())
}
