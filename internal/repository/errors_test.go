package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError("op", nil))

	for _, domain := range domainErrors {
		wrapped := fmt.Errorf("event x: %w", domain)
		assert.Same(t, wrapped, MapError("op", wrapped), domain.Error())
	}

	cause := errors.New("pq: relation does not exist")
	err := MapError("get event", cause)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.NotErrorIs(t, err, cause)
	assert.Equal(t, "get event: storage failure: pq: relation does not exist", err.Error())

	err = MapError("ping", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}
