package manifest

import (
	"os"
	"path/filepath"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMeta() *Meta {
	return &Meta{
		Version:     CurrentVersion,
		Backend:     BackendHNSW,
		NumPassages: 2,
		Dimension:   8,
		Metric:      MetricCosine,
		ModelID:     "test-model",
		Files: Files{
			Passages:   "idx.passages.jsonl",
			Offsets:    "idx.passages.idx",
			Graph:      "idx.hnsw",
			Embeddings: "idx.embeddings.bin",
		},
		HNSW:             &HNSWParams{M: 16, EFConstruction: 200, EFSearchDefault: 64},
		BuildFingerprint: "deadbeef",
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := validMeta()
	require.NoError(t, m.Save(dir, "idx"))

	loaded, err := Load(dir, "idx")
	require.NoError(t, err)
	assert.Equal(t, m.Backend, loaded.Backend)
	assert.Equal(t, m.Dimension, loaded.Dimension)
	assert.Equal(t, m.Metric, loaded.Metric)
	assert.Equal(t, m.ModelID, loaded.ModelID)
	assert.Equal(t, m.Files, loaded.Files)
	require.NotNil(t, loaded.HNSW)
	assert.Equal(t, m.HNSW.M, loaded.HNSW.M)
}

func TestSaveLoad_PreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	m := validMeta()
	require.NoError(t, m.Save(dir, "idx"))

	// Simulate a future schema field written by a newer build of the package.
	path := fileName(dir, "idx")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, gojson.Unmarshal(data, &raw))
	raw["future_field"] = "kept"
	patched, err := gojson.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, patched, 0o644))

	loaded, err := Load(dir, "idx")
	require.NoError(t, err)
	require.NoError(t, loaded.Save(dir, "idx"))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var final map[string]any
	require.NoError(t, gojson.Unmarshal(data, &final))
	assert.Equal(t, "kept", final["future_field"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir(), "absent")
	assert.Error(t, err)
}

func TestLoad_CorruptJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.meta.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(dir, "idx")
	assert.Error(t, err)
}

func TestValidate_RejectsUnrecognizedBackend(t *testing.T) {
	m := validMeta()
	m.Backend = Backend("quantum")
	dir := t.TempDir()
	require.NoError(t, m.Save(dir, "idx"))
	_, err := Load(dir, "idx")
	assert.Error(t, err)
}

func TestValidate_RejectsZeroDimension(t *testing.T) {
	m := validMeta()
	m.Dimension = 0
	dir := t.TempDir()
	require.NoError(t, m.Save(dir, "idx"))
	_, err := Load(dir, "idx")
	assert.Error(t, err)
}

func TestValidate_RecomputeWithoutEmbeddingsFileOK(t *testing.T) {
	m := validMeta()
	m.Recompute = true
	m.Files.Embeddings = ""
	dir := t.TempDir()
	require.NoError(t, m.Save(dir, "idx"))
	_, err := Load(dir, "idx")
	assert.NoError(t, err)
}

func TestValidate_NonRecomputeRequiresEmbeddingsFile(t *testing.T) {
	m := validMeta()
	m.Recompute = false
	m.Files.Embeddings = ""
	dir := t.TempDir()
	require.NoError(t, m.Save(dir, "idx"))
	_, err := Load(dir, "idx")
	assert.Error(t, err)
}

func TestValidate_BackendParamsMustMatchBackend(t *testing.T) {
	m := validMeta()
	m.HNSW = nil
	dir := t.TempDir()
	require.NoError(t, m.Save(dir, "idx"))
	_, err := Load(dir, "idx")
	assert.Error(t, err)
}

func TestCheckModelID(t *testing.T) {
	m := validMeta()
	assert.NoError(t, m.CheckModelID("test-model"))
	assert.Error(t, m.CheckModelID("other-model"))
}
