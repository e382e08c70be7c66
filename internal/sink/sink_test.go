package sink

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cmdsched/internal/executor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nl(lines ...string) string {
	return strings.Join(lines, LineSeparator) + LineSeparator
}

func TestFormatSuccess(t *testing.T) {
	o := executor.Outcome{Command: "echo", OK: true, Stdout: "hello\nworld\n"}
	assert.Equal(t, nl("hello", "world"), string(Format(o)))

	o.Stdout = "no newline"
	assert.Equal(t, nl("no newline"), string(Format(o)))

	o.Stdout = ""
	assert.Empty(t, Format(o))
}

func TestFormatFailure(t *testing.T) {
	exit := executor.Outcome{Command: "false", Failure: executor.NonZeroExit, ExitCode: 1}
	assert.Equal(t, nl("Error executing command: false, Exit Code: 1"), string(Format(exit)))

	launch := executor.Outcome{Command: "nope", Failure: executor.LaunchFailure, ExitCode: -1, Err: "not found"}
	assert.Equal(t, nl("Error executing command: nope, Error: not found"), string(Format(launch)))
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "output.txt")

	f, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Record(executor.Outcome{OK: true, Stdout: "one\n"}))
	require.NoError(t, f.Close())

	f, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Record(executor.Outcome{OK: true, Stdout: "two\n"}))
	require.NoError(t, f.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, nl("one", "two"), string(b))
}

func TestRecordAfterClose(t *testing.T) {
	f := New(&bytes.Buffer{})
	require.NoError(t, f.Close())
	err := f.Record(executor.Outcome{OK: true, Stdout: "x"})
	assert.True(t, errors.Is(err, ErrClosed))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRecordWriteError(t *testing.T) {
	f := New(failingWriter{})
	assert.EqualError(t, f.Record(executor.Outcome{OK: true, Stdout: "x"}), "disk full")
}

func TestConcurrentRecordsDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf)

	const workers = 32
	const lines = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var sb strings.Builder
			for l := 0; l < lines; l++ {
				fmt.Fprintf(&sb, "w%02d l%02d\n", i, l)
			}
			assert.NoError(t, f.Record(executor.Outcome{OK: true, Stdout: sb.String()}))
		}(i)
	}
	wg.Wait()

	got := strings.Split(strings.TrimSuffix(buf.String(), LineSeparator), LineSeparator)
	require.Len(t, got, workers*lines)
	seen := map[string]bool{}
	for blk := 0; blk < workers; blk++ {
		first := got[blk*lines]
		id := first[:3]
		require.False(t, seen[id], "block %s written twice", id)
		seen[id] = true
		for l := 0; l < lines; l++ {
			assert.Equal(t, fmt.Sprintf("%s l%02d", id, l), got[blk*lines+l])
		}
	}
}
