package fatal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitStatus(t *testing.T) {
	assert.Equal(t, 0, ExitStatus(nil))
	assert.Equal(t, 1, ExitStatus(errors.New("plain")))
	assert.Equal(t, 3, ExitStatus(Error(3, "boom")))
	assert.Equal(t, 7, ExitStatus(fmt.Errorf("wrapped: %w", Errorf(7, "inner %d", 1))))
}

func TestErrorfUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := Errorf(2, "build failed: %w", sentinel)

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, "build failed: sentinel", err.Error())
}
