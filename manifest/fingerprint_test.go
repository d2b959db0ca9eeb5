package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_OrderIndependent(t *testing.T) {
	params := map[string]string{"backend": "hnsw", "M": "16"}
	a := Fingerprint("model-1", 8, 3, params, []string{"a", "b", "c"})
	b := Fingerprint("model-1", 8, 3, params, []string{"c", "a", "b"})
	assert.Equal(t, a, b)
}

func TestFingerprint_DiffersOnModelID(t *testing.T) {
	params := map[string]string{"backend": "hnsw"}
	a := Fingerprint("model-1", 8, 3, params, []string{"a"})
	b := Fingerprint("model-2", 8, 3, params, []string{"a"})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_DiffersOnParams(t *testing.T) {
	a := Fingerprint("model-1", 8, 1, map[string]string{"M": "16"}, []string{"a"})
	b := Fingerprint("model-1", 8, 1, map[string]string{"M": "32"}, []string{"a"})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_DiffersOnPassageSet(t *testing.T) {
	params := map[string]string{}
	a := Fingerprint("model-1", 8, 1, params, []string{"a"})
	b := Fingerprint("model-1", 8, 1, params, []string{"b"})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_ParamKeyOrderIndependent(t *testing.T) {
	a := Fingerprint("model-1", 8, 1, map[string]string{"a": "1", "z": "2"}, []string{"x"})
	b := Fingerprint("model-1", 8, 1, map[string]string{"z": "2", "a": "1"}, []string{"x"})
	assert.Equal(t, a, b)
}
