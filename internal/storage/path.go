package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
)

const (
	snapshotRoot   = "snapshots"
	latestFileName = "latest.parquet"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// SessionDirectory is the hex SHA-256 of a session key.
func SessionDirectory(sessionKey string) string {
	sum := sha256.Sum256([]byte(sessionKey))
	return hex.EncodeToString(sum[:])
}

func SnapshotPrefix(sessionKey string) string {
	return path.Join(snapshotRoot, SessionDirectory(sessionKey)) + "/"
}

func BuildSnapshotVersionPath(sessionKey, versionID string) (string, error) {
	if err := validatePathComponent(versionID, "version id"); err != nil {
		return "", err
	}
	return path.Join(snapshotRoot, SessionDirectory(sessionKey), fmt.Sprintf("%s.parquet", versionID)), nil
}

func BuildLatestSnapshotPath(sessionKey string) string {
	return path.Join(snapshotRoot, SessionDirectory(sessionKey), latestFileName)
}

func IsLatestSnapshotPath(key string) bool {
	return path.Base(key) == latestFileName
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, field, value)
	}
	return nil
}
