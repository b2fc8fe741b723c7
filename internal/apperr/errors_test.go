package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := NotFound("account %d not found", 7)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "account 7 not found", err.Error())

	wrapped := fmt.Errorf("lookup: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestWrap(t *testing.T) {
	err := Wrap(KindInternal, sql.ErrConnDone, "insert transaction")

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.True(t, errors.Is(err, ErrInternal))
	assert.Contains(t, err.Error(), "insert transaction")
}

func TestKindOf_UntypedError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindNotFound:          http.StatusNotFound,
		KindConflict:          http.StatusConflict,
		KindInvalidAmount:     http.StatusBadRequest,
		KindInsufficientFunds: http.StatusBadRequest,
		KindInvalidOperation:  http.StatusBadRequest,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, status := range tests {
		assert.Equal(t, status, HTTPStatus(kind), string(kind))
	}
}
