package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// WriteFileAtomic writes data to a sibling temp file and renames it over path,
// so readers never observe a partial artifact.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SuffixedName returns "{dir}/{stem}_{suffix}.{ext}" for the source path.
func SuffixedName(dir, source, suffix, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", Stem(source), suffix, ext))
}

// RemoveMatching deletes regular files in dir whose names match pattern
// (filepath.Match syntax). Missing directories are not an error.
func RemoveMatching(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// ExpireResult summarises an Expire sweep.
type ExpireResult struct {
	Expired      []string
	Evicted      []string
	FreedBytes   int64
	RemainingSum int64
}

// Expire removes regular files in dir older than maxAge, then removes the
// largest remaining files while their combined size exceeds maxBytes. A zero
// maxAge or maxBytes disables that rule.
func Expire(dir string, maxAge time.Duration, maxBytes int64, now time.Time) (ExpireResult, error) {
	var result ExpireResult
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}

	type sized struct {
		path string
		size int64
	}
	var kept []sized
	cutoff := now.Add(-maxAge)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if maxAge > 0 && info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return result, fmt.Errorf("remove %s: %w", path, err)
			}
			result.Expired = append(result.Expired, path)
			result.FreedBytes += info.Size()
			continue
		}
		kept = append(kept, sized{path: path, size: info.Size()})
		result.RemainingSum += info.Size()
	}

	if maxBytes <= 0 {
		return result, nil
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].size > kept[j].size })
	for _, f := range kept {
		if result.RemainingSum <= maxBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			return result, fmt.Errorf("remove %s: %w", f.path, err)
		}
		result.Evicted = append(result.Evicted, f.path)
		result.FreedBytes += f.size
		result.RemainingSum -= f.size
	}
	return result, nil
}
