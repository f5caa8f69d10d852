package apperr

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("send: %w", Permission("only the sender can edit"))

	assert.Equal(t, KindPermission, KindOf(err))
	assert.True(t, Is(err, KindPermission))
	assert.Equal(t, "only the sender can edit", Message(err))
}

func TestUnclassifiedIsTransport(t *testing.T) {
	err := assert.AnError

	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, "internal error", Message(err))
	assert.False(t, Is(nil, KindTransport))
}

func TestTransportHidesCause(t *testing.T) {
	err := Transport("failed to store message", assert.AnError)

	assert.Equal(t, "failed to store message", Message(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCooldownRetryAfter(t *testing.T) {
	err := Cooldown(90 * time.Second)

	assert.Equal(t, KindCooldown, KindOf(err))
	assert.Equal(t, 90*time.Second, RetryAfter(err))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(KindOf(err)))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindAuthentication: http.StatusUnauthorized,
		KindPermission:     http.StatusForbidden,
		KindNotFound:       http.StatusNotFound,
		KindNoItems:        http.StatusConflict,
		KindTransport:      http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), string(kind))
	}
}
