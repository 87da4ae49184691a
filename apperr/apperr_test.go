package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryKindAndDetail(t *testing.T) {
	err := NotFound("no song with index %d", 4)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "no song with index 4", DetailOf(err))

	assert.Equal(t, KindForbidden, KindOf(Forbidden("nope")))
	assert.Equal(t, KindConflict, KindOf(Conflict("twice")))
	assert.Equal(t, KindBadRequest, KindOf(BadRequest("bad")))
}

func TestWrapPreservesKind(t *testing.T) {
	orig := Forbidden("no permission")

	wrapped := Wrap(fmt.Errorf("handler: %w", orig))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.Equal(t, "no permission", DetailOf(wrapped))
}

func TestWrapForeignError(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	wrapped := Wrap(cause)
	assert.Equal(t, KindBadRequest, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	assert.Nil(t, Wrap(nil))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
