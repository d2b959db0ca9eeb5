package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint computes the build fingerprint: a hash over model_id,
// dimension, passage count, the build parameters that affect graph
// topology, and the sorted set of passage ids. Two builds of the same
// corpus with the same params produce the same fingerprint regardless of
// ingest order, satisfying the idempotent-rebuild property.
func Fingerprint(modelID string, dimension, numPassages int, params map[string]string, passageIDs []string) string {
	sorted := make([]string, len(passageIDs))
	copy(sorted, passageIDs)
	sort.Strings(sorted)

	paramKeys := make([]string, 0, len(params))
	for k := range params {
		paramKeys = append(paramKeys, k)
	}
	sort.Strings(paramKeys)

	var b strings.Builder
	fmt.Fprintf(&b, "model_id=%s\ndimension=%d\nnum_passages=%d\n", modelID, dimension, numPassages)
	for _, k := range paramKeys {
		fmt.Fprintf(&b, "param:%s=%s\n", k, params[k])
	}
	for _, id := range sorted {
		b.WriteString("id:")
		b.WriteString(id)
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
