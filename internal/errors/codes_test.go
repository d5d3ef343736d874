package errors

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestParkError_Error(t *testing.T) {
	err := OCRUnavailable("tesseract failed", pkgerrors.New("exit status 1"))
	assert.Equal(t, "[OCR_UNAVAILABLE] tesseract failed: exit status 1", err.Error())
	assert.Equal(t, "[INVALID_ARGUMENT] empty text", InvalidArgument("empty text").Error())

	err = InvalidArgument("bad quality").WithContext("quality", 2.0)
	assert.Equal(t, 2.0, err.Context["quality"])
}

func TestCodeThroughWrapping(t *testing.T) {
	err := pkgerrors.Wrap(UnsupportedMedia("bmp"), "read sign")

	assert.True(t, IsCode(err, ErrCodeUnsupportedMedia))
	assert.False(t, IsCode(err, ErrCodeTimeout))
	assert.Equal(t, ErrCodeUnsupportedMedia, GetCodeFromError(err, ErrCodeInternal))
	assert.Equal(t, ErrCodeInternal, GetCodeFromError(pkgerrors.New("plain"), ErrCodeInternal))
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, ErrCodeContextCanceled, FromContext(ctx).Code)

	ctx, cancel = context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	assert.Equal(t, ErrCodeTimeout, FromContext(ctx).Code)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{pkgerrors.New("boom"), 1},
		{InvalidArgument("x"), 2},
		{PolicyInvalid(pkgerrors.New("syntax")), 2},
		{OCRUnavailable("x", nil), 3},
		{Timeout("x"), 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err))
	}
}
