package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRingSizesValid(t *testing.T) {
	frameSize, blockSize, numBlocks, err := computeRingSizes(8*1024*1024, 1500)
	require.NoError(t, err)
	assert.Greater(t, frameSize, 0)
	assert.Equal(t, frameSize*128, blockSize)
	assert.Greater(t, numBlocks, 0)
}

func TestComputeRingSizesTooSmallBufferIsError(t *testing.T) {
	_, _, _, err := computeRingSizes(1024, 65536)
	assert.Error(t, err)
}
