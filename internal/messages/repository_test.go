package messages

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSortPairIsOrderInsensitive(t *testing.T) {
	x := uuid.New()
	y := uuid.New()

	a1, b1 := sortPair(x, y)
	a2, b2 := sortPair(y, x)

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.Less(t, a1.String(), b1.String())
}
