package common

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindError_Is(t *testing.T) {
	err := GeometryError("graph.AddEnergy", "empty geometry at p1_%d", 3)

	assert.True(t, errors.Is(err, ErrGeometry))
	assert.False(t, errors.Is(err, ErrSchema))
	assert.Contains(t, err.Error(), "p1_3")

	wrapped := fmt.Errorf("match failed: %w", err)
	assert.True(t, errors.Is(wrapped, ErrGeometry))

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindGeometry, kind)
}

func TestKindOf_Plain(t *testing.T) {
	_, ok := KindOf(errors.New("boom"))
	assert.False(t, ok)
}

func TestCheckThreshold(t *testing.T) {
	assert.NoError(t, CheckThreshold("op", "tau", 0))
	assert.NoError(t, CheckThreshold("op", "tau", 1))
	assert.NoError(t, CheckThreshold("op", "tau", 0.05))

	for _, v := range []float64{-0.1, 1.01, math.NaN(), math.Inf(1)} {
		err := CheckThreshold("op", "tau", v)
		assert.True(t, errors.Is(err, ErrConfig), "value %v", v)
	}
}
