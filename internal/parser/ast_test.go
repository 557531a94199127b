package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDiffBlocks(t *testing.T) {
	source := []byte("# Fix greeting\n\nSome notes.\n\n```diff\n--- a/hello.txt\n+++ b/hello.txt\n@@ -1,2 +1,2 @@\n keep\n-hello\n+hi\n```\n\n```go\nfunc main() {}\n```\n\n```patch\n--- /dev/null\n+++ b/new.txt\n@@ -0,0 +1 @@\n+new\n```\n")

	blocks, err := ExtractDiffBlocks(source)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "--- a/hello.txt\n+++ b/hello.txt\n@@ -1,2 +1,2 @@\n keep\n-hello\n+hi\n", blocks[0])

	d, err := Parse(blocks[0], DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", d.Target.Path)

	d, err = Parse(blocks[1], DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, "new.txt", d.Target.Path)
}

func TestExtractDiffBlocks_NoBlocks(t *testing.T) {
	blocks, err := ExtractDiffBlocks([]byte("just text\n\n```sh\necho hi\n```\n"))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}
