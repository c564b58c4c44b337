// Package cache persists per-file analysis results and the whole-project
// dead-symbol/orphan result in a single embedded bbolt database under
// <project_root>/.janitor_cache/analysis.db, so repeat runs over an
// unchanged project can skip parsing and reference linking entirely.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketFileMeta    = []byte("file_metadata")
	bucketDanger      = []byte("metaprogramming_danger")
	bucketDefinitions = []byte("symbol_definitions")
	bucketReferences  = []byte("file_references")
	bucketDependencies = []byte("file_dependencies")
	bucketResult      = []byte("analysis_result")
)

// AnalysisCache wraps a bbolt database keyed by file path for per-file
// tables, and by project fingerprint for the whole-project result.
type AnalysisCache struct {
	db   *bolt.DB
	path string
}

// Open creates (or reuses) .janitor_cache/analysis.db under projectRoot.
// Bucket creation is idempotent: re-opening an existing database on a
// newer binary version that adds buckets never fails or requires a
// migration step.
func Open(projectRoot string) (*AnalysisCache, error) {
	cacheDir := filepath.Join(projectRoot, ".janitor_cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dbPath := filepath.Join(cacheDir, "analysis.db")

	db, err := bolt.Open(dbPath, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketFileMeta, bucketDanger, bucketDefinitions, bucketReferences, bucketDependencies, bucketResult} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache buckets: %w", err)
	}

	return &AnalysisCache{db: db, path: dbPath}, nil
}

func (c *AnalysisCache) Close() error {
	return c.db.Close()
}

// fileMeta is the stored mtime/size cache key for one file.
type fileMeta struct {
	ModTime int64 `json:"mtime"`
	Size    int64 `json:"size"`
}

func cacheKey(mtime, size int64) string {
	return fmt.Sprintf("%d:%d", mtime, size)
}

// IsFileCached reports whether the given mtime/size still matches what was
// stored for path.
func (c *AnalysisCache) IsFileCached(path string, mtime, size int64) bool {
	var cached fileMeta
	found := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFileMeta).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &cached); err != nil {
			return nil
		}
		found = true
		return nil
	})
	return found && cached.ModTime == mtime && cached.Size == size
}

func (c *AnalysisCache) touchFileMeta(tx *bolt.Tx, path string, mtime, size int64) error {
	data, err := json.Marshal(fileMeta{ModTime: mtime, Size: size})
	if err != nil {
		return err
	}
	return tx.Bucket(bucketFileMeta).Put([]byte(path), data)
}

// GetDependencies returns the cached import-edge target paths for path, or
// nil if not cached / stale.
func (c *AnalysisCache) GetDependencies(path string, mtime, size int64) ([]string, bool) {
	if !c.IsFileCached(path, mtime, size) {
		return nil, false
	}
	var deps []string
	ok := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDependencies).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &deps); err != nil {
			return nil
		}
		ok = true
		return nil
	})
	return deps, ok
}

func (c *AnalysisCache) SetDependencies(path string, mtime, size int64, deps []string) error {
	data, err := json.Marshal(deps)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := c.touchFileMeta(tx, path, mtime, size); err != nil {
			return err
		}
		return tx.Bucket(bucketDependencies).Put([]byte(path), data)
	})
}

// GetDanger returns the cached metaprogramming-danger flag for path.
func (c *AnalysisCache) GetDanger(path string, mtime, size int64) (bool, bool) {
	if !c.IsFileCached(path, mtime, size) {
		return false, false
	}
	var dangerous bool
	ok := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDanger).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &dangerous); err != nil {
			return nil
		}
		ok = true
		return nil
	})
	return dangerous, ok
}

func (c *AnalysisCache) SetDanger(path string, mtime, size int64, dangerous bool) error {
	data, err := json.Marshal(dangerous)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := c.touchFileMeta(tx, path, mtime, size); err != nil {
			return err
		}
		return tx.Bucket(bucketDanger).Put([]byte(path), data)
	})
}

// GetDefinitions/SetDefinitions and GetReferences/SetReferences cache the
// JSON-serialized per-file extraction results for phase 2 and phase 3.
func (c *AnalysisCache) GetDefinitions(path string, mtime, size int64, out interface{}) bool {
	return c.getJSON(bucketDefinitions, path, mtime, size, out)
}

func (c *AnalysisCache) SetDefinitions(path string, mtime, size int64, v interface{}) error {
	return c.setJSON(bucketDefinitions, path, mtime, size, v)
}

func (c *AnalysisCache) GetReferences(path string, mtime, size int64, out interface{}) bool {
	return c.getJSON(bucketReferences, path, mtime, size, out)
}

func (c *AnalysisCache) SetReferences(path string, mtime, size int64, v interface{}) error {
	return c.setJSON(bucketReferences, path, mtime, size, v)
}

func (c *AnalysisCache) getJSON(bucket []byte, path string, mtime, size int64, out interface{}) bool {
	if !c.IsFileCached(path, mtime, size) {
		return false
	}
	ok := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return nil
		}
		ok = true
		return nil
	})
	return ok
}

func (c *AnalysisCache) setJSON(bucket []byte, path string, mtime, size int64, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := c.touchFileMeta(tx, path, mtime, size); err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(path), data)
	})
}

// ProjectResultRecord is the cached whole-project result, short-circuiting
// the entire pipeline when the project fingerprint is unchanged.
type ProjectResultRecord struct {
	DeadSymbols  []byte `json:"dead_symbols"`
	OrphanFiles  []byte `json:"orphan_files"`
	Attributions []byte `json:"attributions"`
	Stats        []byte `json:"stats"`
	Timestamp    int64  `json:"timestamp"`
}

func (c *AnalysisCache) GetProjectResult(fingerprint string) (*ProjectResultRecord, bool) {
	var rec ProjectResultRecord
	found := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketResult).Get([]byte(fingerprint))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found {
		return nil, false
	}
	return &rec, true
}

func (c *AnalysisCache) SetProjectResult(fingerprint string, rec ProjectResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResult).Put([]byte(fingerprint), data)
	})
}

// InvalidateFile drops every cached entry for path, so that a file deleted
// between runs leaves no stale entries behind for a later fingerprint
// collision.
func (c *AnalysisCache) InvalidateFile(path string) error {
	key := []byte(path)
	return c.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketFileMeta, bucketDanger, bucketDefinitions, bucketReferences, bucketDependencies} {
			if err := tx.Bucket(b).Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
