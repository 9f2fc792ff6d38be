package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCachedSystemBlocks(t *testing.T) {
	text := "Extract bank account closure attempts from the comment.\n\nKnown banks:\n- Chase\n- Citi"

	blocks := BuildCachedSystemBlocks(text)

	require.Len(t, blocks, 1)
	assert.Equal(t, text, blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}

func TestBuildCachedSystemBlocks_EmptyText(t *testing.T) {
	blocks := BuildCachedSystemBlocks("")

	require.Len(t, blocks, 1)
	assert.Equal(t, "", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
}
