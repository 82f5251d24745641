package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// FolderHash computes the expected content hash of a folder from its files,
// keyed by slash-separated relative path. It is an independent rendition of
// the canonical form: a JSON array of {"path","sha256"} objects sorted by path.
func FolderHash(files map[string][]byte) string {
	if len(files) == 0 {
		return SHA256Hex(nil)
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	records := make([]map[string]string, 0, len(paths))
	for _, p := range paths {
		records = append(records, map[string]string{"path": p, "sha256": SHA256Hex(files[p])})
	}
	data, err := json.Marshal(records)
	if err != nil {
		panic(err)
	}
	return SHA256Hex(data)
}
