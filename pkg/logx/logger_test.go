package logx

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestWriterLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "INFO").With(String("comp", "test"))

	log.Debug("hidden")
	log.Info("hello", Int("n", 3), Duration("d", 2*time.Second), Err(errors.New("boom")), Err(nil))
	log.With(String("comp", "override")).Warn("later wins")

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 2)

	assert.Equal(t, "hello", lines[0]["message"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "test", lines[0]["comp"])
	assert.EqualValues(t, 3, lines[0]["n"])
	assert.Equal(t, "boom", lines[0]["err"])
	assert.Contains(t, lines[0]["caller"], "logging_test.go:")

	assert.Equal(t, "override", lines[1]["comp"])
}

func TestZeroAndNop(t *testing.T) {
	var zero Logger
	assert.True(t, zero.IsZero())
	zero.Info("must not panic")

	nop := Nop()
	assert.False(t, nop.IsZero())
	nop.Error("dropped")
}

func TestServiceFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wfn.log")
	svc, log := New(Config{Level: "DEBUG", File: FileConfig{Enabled: true, Path: path, MaxSizeMB: 1}})
	log.With(String("comp", "file")).Debug("to file", Any("ok", true))

	// Apply keeps derived loggers live.
	svc.Apply(Config{Level: "ERROR", File: FileConfig{Enabled: true, Path: path}})
	log.Info("filtered")
	log.Error("kept")
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, b)
	require.Len(t, lines, 2)
	assert.Equal(t, "to file", lines[0]["message"])
	assert.Equal(t, true, lines[0]["ok"])
	assert.Equal(t, "kept", lines[1]["message"])
}
