package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/compilebench/harness"
	"github.com/weiihann/compilebench/project"
)

func result(name string, rounds ...time.Duration) harness.Result {
	p := project.MustNew("org", name, "", []string{"make"}, []string{"make", "clean"}, false)

	return harness.Result{Project: p, Rounds: rounds}
}

func sampleResults() []harness.Result {
	return []harness.Result{
		result("p1", 1*time.Second, 2*time.Second),
		result("p2", 3*time.Second, 4*time.Second),
	}
}

func TestGenerate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, sampleResults()))

	assert.Equal(t, "name, times\np1, 1, 2\np2, 3, 4\n", buf.String())
}

func TestGenerateTruncatesToSeconds(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, []harness.Result{
		result("slow", 61900*time.Millisecond, 400*time.Millisecond),
	}))

	assert.Equal(t, "name, times\nslow, 61, 0\n", buf.String())
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, nil))

	assert.Equal(t, "name, times\n", buf.String())
}

func TestGenerateIdempotent(t *testing.T) {
	results := sampleResults()

	var a, b bytes.Buffer
	require.NoError(t, Generate(&a, results))
	require.NoError(t, Generate(&b, results))

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestGenerateJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GenerateJSON(&buf, sampleResults()))

	var parsed []jsonResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed, 2)

	assert.Equal(t, "org/p1", parsed[0].Project)
	assert.Equal(t, "p1", parsed[0].Name)
	assert.Equal(t, []int64{1, 2}, parsed[0].Times)
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render("xml", sampleResults())
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "report.csv")

	require.NoError(t, WriteFile(path, FormatCSV, sampleResults()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name, times\np1, 1, 2\np2, 3, 4\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestWriteFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	require.NoError(t, WriteFile(path, FormatCSV, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name, times\n", string(data))
}

func TestWriteFileBadFormatLeavesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")

	require.Error(t, WriteFile(path, "xml", sampleResults()))
	assert.NoFileExists(t, path)
}
