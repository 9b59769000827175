package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestSentinelMatching(t *testing.T) {
	wrapped := fmt.Errorf("index %q: %w", "lcp", ErrOutOfRange)
	assert.ErrorIs(t, wrapped, ErrOutOfRange)
	assert.NotErrorIs(t, wrapped, ErrEmptyInput)

	annotated := ErrOutOfRange.With("i", 3).With("j", 1)
	assert.ErrorIs(t, annotated, ErrOutOfRange)
	assert.Empty(t, ErrOutOfRange.Context, "sentinel must not be mutated")
	assert.Equal(t, 3, annotated.Context["i"])

	detailed := ErrInvalidNode.WithDetail("node %d", 9)
	assert.Equal(t, "node 9", detailed.Detail)
	assert.NotEqual(t, "node 9", ErrInvalidNode.Detail)
}

func TestProtocolMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrOutOfRange.HTTPStatus())
	assert.Equal(t, codes.OutOfRange, ErrOutOfRange.GRPCCode())
	assert.Equal(t, codes.InvalidArgument, ErrEmptyInput.GRPCCode())
	assert.Equal(t, codes.FailedPrecondition, ErrNotUnitStep.ToGRPCStatus().Code())
	assert.Equal(t, http.StatusNotFound, ErrIndexNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, ErrIndexExists.HTTPStatus())
	assert.Equal(t, "OutOfRange", ErrOutOfRangeArg.String())
	assert.Equal(t, "Unknown", ErrorType(99).String())
}

func TestWrapAndFromError(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternal, "x"))

	plain := errors.New("disk gone")
	w := Wrap(plain, ErrInternal, "load failed")
	assert.Equal(t, ErrInternal, w.Type)
	assert.ErrorIs(t, w, plain)

	re := Wrap(ErrIndexNotFound, ErrInternal, "lookup failed")
	assert.Equal(t, ErrNotFound, re.Type)
	assert.Equal(t, "index not found", ErrIndexNotFound.Message)

	e, ok := FromError(fmt.Errorf("outer: %w", ErrEmptyInput))
	assert.True(t, ok)
	assert.Equal(t, 400101, e.Code)
	assert.True(t, IsType(fmt.Errorf("outer: %w", ErrEmptyInput), ErrInvalidArg))
	assert.False(t, IsType(plain, ErrInvalidArg))

	assert.Contains(t, Internal("boom", plain).Error(), "Cause: disk gone")
	assert.NotEmpty(t, InvalidArg("bad").Stack)
	assert.Equal(t, 404, NotFound("missing").Code)
}
