package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_ErrorMessageIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("disk full")
	err := New(KindStore, "write asset", cause)
	assert.Contains(t, err.Error(), "store")
	assert.Contains(t, err.Error(), "write asset")
	assert.Contains(t, err.Error(), "disk full")
}

func TestNew_ErrorMessageOmitsCauseWhenNil(t *testing.T) {
	err := New(KindBackPressure, "queue full", nil)
	assert.Equal(t, "back_pressure: queue full", err.Error())
}

func TestUnwrap_ExposesCauseForErrorsIs(t *testing.T) {
	err := New(KindStore, "duplicate session id", ErrDuplicateSession)
	assert.True(t, errors.Is(err, ErrDuplicateSession))
}

func TestIs_MatchesKindThroughWrapping(t *testing.T) {
	err := New(KindSecurityContract, "forbidden pattern", nil)
	assert.True(t, Is(err, KindSecurityContract))
	assert.False(t, Is(err, KindStore))
}

func TestIs_FalseForNonAppErr(t *testing.T) {
	assert.False(t, Is(errors.New("plain error"), KindStore))
}
