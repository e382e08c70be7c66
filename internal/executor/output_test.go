package executor_test

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"

	"cmdsched/internal/executor"
	"cmdsched/internal/sink"
	logx "cmdsched/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLargeOutputIsLoggedWhole(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	var buf bytes.Buffer
	ex := executor.New(sink.New(&buf), logx.Nop(),
		executor.WithConfig(executor.Config{Shell: []string{"/bin/sh", "-c"}}))

	// One 70000-byte line followed by 20000 short lines: well past any pipe buffer
	// and past bufio.Scanner's default token size.
	cmd := `head -c 70000 /dev/zero | tr '\0' a; echo; yes abcdefghij | head -n 20000`
	o := ex.Run(context.Background(), cmd)

	require.True(t, o.OK, "diagnostic: %s", o.Diagnostic())
	require.Greater(t, len(o.Stdout), 64<<10)
	assert.Equal(t, strings.Repeat("a", 70000)+"\n", o.Stdout[:70001])
	assert.Equal(t, 70001+20000*11, len(o.Stdout))
	assert.True(t, buf.String() == o.Stdout, "logged %d bytes, captured %d", buf.Len(), len(o.Stdout))
}
