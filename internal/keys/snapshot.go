package keys

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const snapshotLayout = "20060102T150405Z"

// sanitizeKey replaces spaces with hyphens and lowercases the string.
func sanitizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}

// SnapshotPrefix is the key prefix under which snapshots of one source are
// stored.
func SnapshotPrefix(source string) string {
	return fmt.Sprintf("snapshots/%s/", sanitizeKey(source))
}

// Snapshot returns the object key for a snapshot of source taken at t. Keys
// of one source sort in time order.
func Snapshot(source string, t time.Time) string {
	return SnapshotPrefix(source) + t.UTC().Format(snapshotLayout) + ".jsonl"
}

// SnapshotTime parses the time back out of a key built by Snapshot.
func SnapshotTime(key string) (time.Time, error) {
	base := strings.TrimSuffix(path.Base(key), ".jsonl")
	t, err := time.Parse(snapshotLayout, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a snapshot key %q: %w", key, err)
	}
	return t, nil
}
