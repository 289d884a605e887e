package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCode(t *testing.T) {
	base := ConfigInvalid("DATABASE_URL is required")
	wrapped := Wrap(base, "failed to load configuration")

	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.Equal(t, "failed to load configuration: DATABASE_URL is required", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrap_PlainErrorIsInternal(t *testing.T) {
	cause := fmt.Errorf("disk full")
	wrapped := Wrapf(cause, "writing %s", "limits.xlsx")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Empty(t, GetCode(nil))
}

func TestGetCode_ThroughStdWrapping(t *testing.T) {
	err := fmt.Errorf("loading run: %w", NotFound("run"))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.True(t, IsAppError(err))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeInvalidInput, StorageError("insert failed", fmt.Errorf("constraint")))
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Contains(t, err.Error(), "insert failed")

	plain := WithCode(CodeRenderError, fmt.Errorf("no data"))
	assert.Equal(t, CodeRenderError, GetCode(plain))
}
