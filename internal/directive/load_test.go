package directive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `# nightly jobs
*/5 echo hello

30 14 25 12 2024 echo holiday
not a directive
*/1 printf ok
`

func TestLoadSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	entries, errs := Load(strings.NewReader(sampleFile), time.UTC)
	require.Len(t, entries, 3)
	require.Len(t, errs, 1)

	assert.Equal(t, 2, entries[0].Line)
	assert.Equal(t, "echo hello", entries[0].Command)
	assert.Equal(t, 4, entries[1].Line)
	assert.Equal(t, KindOneTime, entries[1].Kind)
	assert.Equal(t, 6, entries[2].Line)
	assert.Equal(t, "line.6", entries[2].Name())

	var le *LineError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, 5, le.Line)
	assert.Equal(t, "not a directive", le.Text)
	assert.ErrorIs(t, errs[0], ErrMalformedDirective)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "commands.txt")
	require.NoError(t, os.WriteFile(path, []byte("*/3 uptime\n"), 0o600))

	entries, errs, err := LoadFile(path, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, entries, 1)
	assert.Equal(t, 3*time.Minute, entries[0].Every)

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"), time.UTC)
	assert.Error(t, err)
}
