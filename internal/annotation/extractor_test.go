package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_SingleDirective(t *testing.T) {
	t.Parallel()

	directives := Extract("Status update: [progress|Deploy|55|halfway] more text")

	require.Len(t, directives, 1)
	assert.Equal(t, "Deploy", directives[0].TaskName)
	assert.Equal(t, 55, directives[0].Progress)
	require.NotNil(t, directives[0].Note)
	assert.Equal(t, "halfway", *directives[0].Note)
}

func TestExtract_MalformedValueSkipped(t *testing.T) {
	t.Parallel()

	directives := Extract("[progress|X|abc]")
	assert.Empty(t, directives)
}

func TestExtract_CaseInsensitiveTag(t *testing.T) {
	t.Parallel()

	directives := Extract("[PROGRESS|Deploy|10]")
	require.Len(t, directives, 1)
	assert.Equal(t, "Deploy", directives[0].TaskName)
	assert.Equal(t, 10, directives[0].Progress)
	assert.Nil(t, directives[0].Note)
}

func TestExtract_ClampsValue(t *testing.T) {
	t.Parallel()

	directives := Extract("[progress|Deploy|999]")
	require.Len(t, directives, 1)
	assert.Equal(t, 100, directives[0].Progress)
}

func TestExtract_BlankTaskNameSkipped(t *testing.T) {
	t.Parallel()

	directives := Extract("[progress|   |50]")
	assert.Empty(t, directives)
}

func TestExtract_TrimsNameAndNote(t *testing.T) {
	t.Parallel()

	directives := Extract("[progress|  Deploy  |50|  nearly there  ]")
	require.Len(t, directives, 1)
	assert.Equal(t, "Deploy", directives[0].TaskName)
	require.NotNil(t, directives[0].Note)
	assert.Equal(t, "nearly there", *directives[0].Note)
}

func TestExtract_MultipleDirectivesPreserveOrder(t *testing.T) {
	t.Parallel()

	directives := Extract(
		"first [progress|Deploy|10] then [progress|Test|20|tests pass] " +
			"finally [progress|Deploy|30]",
	)

	require.Len(t, directives, 3)
	assert.Equal(t, "Deploy", directives[0].TaskName)
	assert.Equal(t, 10, directives[0].Progress)
	assert.Equal(t, "Test", directives[1].TaskName)
	assert.Equal(t, "Deploy", directives[2].TaskName)
	assert.Equal(t, 30, directives[2].Progress)
}

func TestExtract_NoDirectives(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Extract(""))
	assert.Empty(t, Extract("just ordinary [bracketed] text"))
	assert.Empty(t, Extract("[progress|]"))
}
