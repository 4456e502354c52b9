package ignorefile_test

import (
	"strings"
	"testing"

	"github.com/dbascode/dbsync/internal/ignorefile"
	"github.com/stretchr/testify/require"
)

func TestShouldProcessNoPatterns(t *testing.T) {
	m := ignorefile.New(nil)
	require.True(t, m.ShouldProcess("base/TABLE/dbo/users.sql"))
}

func TestShouldProcessExactMatch(t *testing.T) {
	m := ignorefile.New([]string{"base/TABLE/dbo/users.sql"})
	require.False(t, m.ShouldProcess("base/TABLE/dbo/users.sql"))
}

func TestShouldProcessSingleStarWithinSegment(t *testing.T) {
	m := ignorefile.New([]string{"base/TABLE/dbo/*.sql"})
	require.False(t, m.ShouldProcess("base/TABLE/dbo/users.sql"))
	require.True(t, m.ShouldProcess("base/TABLE/dbo/sub/users.sql"))
}

func TestShouldProcessDoubleStarCrossesSegments(t *testing.T) {
	m := ignorefile.New([]string{"base/**/scratch.sql"})
	require.False(t, m.ShouldProcess("base/TABLE/dbo/scratch.sql"))
	require.False(t, m.ShouldProcess("base/scratch.sql"))
}

func TestShouldProcessQuestionMark(t *testing.T) {
	m := ignorefile.New([]string{"base/TABLE/dbo/t?.sql"})
	require.False(t, m.ShouldProcess("base/TABLE/dbo/t1.sql"))
	require.True(t, m.ShouldProcess("base/TABLE/dbo/t10.sql"))
}

func TestLoadFromSkipsCommentsAndBlankLines(t *testing.T) {
	content := "# comment\n\nbase/TABLE/dbo/users.sql\n  \n# another\ndiff/**/scratch/*.sql\n"
	m, err := ignorefile.LoadFrom(strings.NewReader(content))
	require.NoError(t, err)
	require.False(t, m.ShouldProcess("base/TABLE/dbo/users.sql"))
	require.False(t, m.ShouldProcess("diff/p1/scratch/VIEW/dbo/v.sql"))
	require.True(t, m.ShouldProcess("base/TABLE/dbo/orders.sql"))
}

func TestLoadMissingFileFallsBackToDefaultPatterns(t *testing.T) {
	m, err := ignorefile.Load("/nonexistent/path/.syncignore")
	require.NoError(t, err)
	require.True(t, m.ShouldProcess("anything.sql"))
	require.False(t, m.ShouldProcess("base/VIEW/dbo/v.tmp.sql"))
}
