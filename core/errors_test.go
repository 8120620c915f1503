package core

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindThroughWrapping(t *testing.T) {
	base := WrapError(KindDecode, "transform.Transform", "a.jpg", "cannot decode jpeg", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("item 3: %w", base)

	assert.Equal(t, KindDecode, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindDecode))
	assert.False(t, IsKind(wrapped, KindTransform))
	assert.True(t, errors.Is(wrapped, io.ErrUnexpectedEOF))
	assert.Equal(t, "[decode] transform.Transform a.jpg: cannot decode jpeg: unexpected EOF", base.Error())
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindUnknown))
	assert.Nil(t, WrapError(KindDecode, "op", "", "msg", nil))
}

func TestIsItemKind(t *testing.T) {
	assert.True(t, IsItemKind(KindDecode))
	assert.True(t, IsItemKind(KindTransform))
	assert.False(t, IsItemKind(KindEncoding))
	assert.False(t, IsItemKind(KindEmptyResult))
}
