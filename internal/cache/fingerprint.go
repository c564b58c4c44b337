package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/go-janitor/janitor/internal/model"
)

// Fingerprint computes the whole-project cache key: the SHA-256 of the
// sorted "<path>:<mtime>:<size>" tuples of every in-scope file. Any file
// add/remove/modify changes the fingerprint and invalidates the
// whole-project result short-circuit, while per-file caches underneath
// remain valid for files that did not change.
func Fingerprint(files []model.DiscoveredFile) string {
	tuples := make([]string, 0, len(files))
	for _, f := range files {
		tuples = append(tuples, fmt.Sprintf("%s:%d:%d", f.RelPath, f.ModTime, f.Size))
	}
	sort.Strings(tuples)

	h := sha256.New()
	for _, t := range tuples {
		h.Write([]byte(t))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
