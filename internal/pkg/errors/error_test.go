package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"already open", ErrAlreadyOpen, "already_open"},
		{"wrapped no open", fmt.Errorf("close jornada: %w", ErrNoOpenJornada), "no_open_jornada"},
		{"no last login", Wrap(ErrNoLastLogin, "relay"), "no_last_login"},
		{"unknown", errors.New("connection reset by peer"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrAlreadyOpen))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(Wrap(ErrNoOpenJornada, "close")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrSystemNotFound))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrNoSession))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrForbidden))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrInvalidStructure))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
