package keywords

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey/complaint-router/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeKeywordFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testSources(t *testing.T) Sources {
	dir := t.TempDir()
	return Sources{
		Complaint: writeKeywordFile(t, dir, "complaint.txt", "unhappy\nOutage\nrefund\n\n# comment line\nunhappy\n"),
		Subject:   writeKeywordFile(t, dir, "subject.txt", "complaint\nescalation\n"),
		Urgency:   writeKeywordFile(t, dir, "urgency.txt", "urgent\nimmediately\n"),
		Negation:  writeKeywordFile(t, dir, "negation.txt", "not\nno\nnever\n"),
	}
}

func TestLoadSet(t *testing.T) {
	set, err := LoadSet(testSources(t))
	require.NoError(t, err)

	// Folded, deduplicated, comments and blanks dropped
	assert.Len(t, set.Complaint, 3)
	assert.Contains(t, set.Complaint, "unhappy")
	assert.Contains(t, set.Complaint, "outage")
	assert.NotContains(t, set.Complaint, "Outage")
	assert.NotContains(t, set.Complaint, "# comment line")

	assert.Len(t, set.Subject, 2)
	assert.Len(t, set.Urgency, 2)
	assert.Len(t, set.Negation, 3)
}

func TestLoadSetMissingFile(t *testing.T) {
	sources := testSources(t)
	sources.Urgency = filepath.Join(t.TempDir(), "does-not-exist.txt")

	_, err := LoadSet(sources)
	require.Error(t, err)

	var cfgErr *core.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "keywords.urgency_file", cfgErr.Field)
}

func TestLoadSetEmptyComplaintFile(t *testing.T) {
	sources := testSources(t)
	sources.Complaint = writeKeywordFile(t, t.TempDir(), "empty.txt", "\n# only comments\n")

	_, err := LoadSet(sources)
	require.Error(t, err)

	var cfgErr *core.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "keywords.complaint_file", cfgErr.Field)
}

func TestLoadSetUnconfiguredPath(t *testing.T) {
	sources := testSources(t)
	sources.Negation = ""

	_, err := LoadSet(sources)
	require.Error(t, err)
}

func TestStoreReload(t *testing.T) {
	dir := t.TempDir()
	complaintPath := writeKeywordFile(t, dir, "complaint.txt", "unhappy\n")
	sources := Sources{
		Complaint: complaintPath,
		Subject:   writeKeywordFile(t, dir, "subject.txt", "complaint\n"),
		Urgency:   writeKeywordFile(t, dir, "urgency.txt", "urgent\n"),
		Negation:  writeKeywordFile(t, dir, "negation.txt", "not\n"),
	}

	store, err := NewStore(sources, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, store.Snapshot().Complaint, 1)

	require.NoError(t, os.WriteFile(complaintPath, []byte("unhappy\noutage\n"), 0644))
	require.NoError(t, store.Reload())
	assert.Len(t, store.Snapshot().Complaint, 2)
}

func TestStoreReloadFailureKeepsSnapshot(t *testing.T) {
	sources := testSources(t)
	store, err := NewStore(sources, zap.NewNop())
	require.NoError(t, err)

	before := store.Snapshot()

	// Empty the complaint file so a reload must fail
	require.NoError(t, os.WriteFile(sources.Complaint, []byte(""), 0644))
	require.Error(t, store.Reload())

	assert.Same(t, before, store.Snapshot())
}
