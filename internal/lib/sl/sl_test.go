package sl_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	attr := sl.Err(errors.New("something went wrong"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.KindString, attr.Value.Kind())
	assert.Equal(t, "something went wrong", attr.Value.String())
}

func TestErr_NilError(t *testing.T) {
	attr := sl.Err(nil)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, "<nil>", attr.Value.String())
}

func TestOpAndChat(t *testing.T) {
	op := sl.Op("gateway.ListSpreads")
	assert.Equal(t, "op", op.Key)
	assert.Equal(t, "gateway.ListSpreads", op.Value.String())

	chat := sl.Chat(42)
	assert.Equal(t, "chat_id", chat.Key)
	assert.Equal(t, int64(42), chat.Value.Int64())
}
