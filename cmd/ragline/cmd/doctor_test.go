package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doctorTestConfig keeps every probe local: static embeddings need no
// endpoint and the chat URL points at a closed port, which is a warning
// rather than a failure.
func doctorTestConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	return writeTestConfig(t, tmpDir, `
data_dir: `+filepath.Join(tmpDir, "data")+`
embed:
  provider: static
chat:
  base_url: http://127.0.0.1:1
  timeout: 1s
`)
}

func TestDoctorCmd_ReportsReadyWithWarnings(t *testing.T) {
	// Given: embedded stores in a fresh data dir and an unreachable chat endpoint
	path := doctorTestConfig(t)

	// When: running doctor
	output, err := runRoot(t, "doctor", "--config", path)

	// Then: storage checks pass, the chat endpoint is only a warning
	require.NoError(t, err, "Warnings must not fail the command")
	assert.Contains(t, output, "ragline system check")
	assert.Contains(t, output, "[PASS] data_dir")
	assert.Contains(t, output, "[PASS] vector_store")
	assert.Contains(t, output, "[PASS] lexical_index")
	assert.Contains(t, output, "[WARN] chat_model")
	assert.Contains(t, output, "Status: READY_WITH_WARNINGS")
}

func TestDoctorCmd_JSONReport(t *testing.T) {
	// Given: the same local-only configuration
	path := doctorTestConfig(t)

	// When: running doctor --json
	output, err := runRoot(t, "doctor", "--config", path, "--json")

	// Then: the report should be machine readable with per-check statuses
	require.NoError(t, err)

	var report doctorReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))

	assert.Equal(t, "ready_with_warnings", report.Status)
	assert.NotEmpty(t, report.Warnings)
	assert.Empty(t, report.Errors)

	byName := map[string]doctorCheckResult{}
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	assert.Equal(t, "pass", byName["data_dir"].Status)
	assert.Equal(t, "pass", byName["vector_store"].Status)
	assert.Equal(t, "warn", byName["chat_model"].Status)
	assert.True(t, byName["vector_store"].Required, "Storage checks are required")
	assert.False(t, byName["chat_model"].Required, "Model checks only warn")
}

func TestDoctorCmd_FailsOnUnreachableVectorStore(t *testing.T) {
	// Given: a remote vector store that is not running
	tmpDir := t.TempDir()
	path := writeTestConfig(t, tmpDir, `
data_dir: `+filepath.Join(tmpDir, "data")+`
embed:
  provider: static
chat:
  base_url: http://127.0.0.1:1
vector:
  url: http://127.0.0.1:1
  timeout: 1s
`)

	// When: running doctor
	output, err := runRoot(t, "doctor", "--config", path)

	// Then: the required check fails and so does the command
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system check failed")
	assert.Contains(t, output, "[FAIL] vector_store")
	assert.Contains(t, output, "Status: FAILED")
}

func TestDoctorCmd_VerboseShowsDetails(t *testing.T) {
	// Given: the local-only configuration
	path := doctorTestConfig(t)

	// When: running doctor --verbose
	output, err := runRoot(t, "doctor", "--config", path, "--verbose")

	// Then: per-check detail lines should appear
	require.NoError(t, err)
	assert.Contains(t, output, "backend: embedded hnsw", "Verbose output should name the backend")
}
