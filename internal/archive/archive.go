package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/querypilot/querypilot/internal/schema"
	"github.com/querypilot/querypilot/internal/storage"
)

var ErrNotFound = errors.New("archived snapshot not found")

const contentType = "application/vnd.apache.parquet"

type Options struct {
	// KeepVersions bounds the versioned files kept per session. Zero keeps all.
	KeepVersions int
	NewVersionID func() (string, error)
}

type batchDeleter interface {
	DeleteMany(ctx context.Context, keys []string) error
}

// Archive persists schema snapshots per session in an object store.
type Archive struct {
	store        storage.ObjectStore
	keepVersions int
	newVersionID func() (string, error)
}

func New(store storage.ObjectStore, opts Options) (*Archive, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	newVersionID := opts.NewVersionID
	if newVersionID == nil {
		newVersionID = newUUIDv7
	}
	return &Archive{store: store, keepVersions: opts.KeepVersions, newVersionID: newVersionID}, nil
}

// Save writes snapshot as a new version and as the session's latest file. It returns the
// version key.
func (a *Archive) Save(ctx context.Context, sessionKey string, snapshot schema.Snapshot) (string, error) {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return "", err
	}
	versionID, err := a.newVersionID()
	if err != nil {
		return "", fmt.Errorf("new version id: %w", err)
	}
	versionKey, err := storage.BuildSnapshotVersionPath(sessionKey, versionID)
	if err != nil {
		return "", err
	}
	meta := snapshotMetadata(snapshot)
	if err := a.put(ctx, versionKey, data, meta); err != nil {
		return "", err
	}
	if err := a.put(ctx, storage.BuildLatestSnapshotPath(sessionKey), data, meta); err != nil {
		return "", err
	}
	if a.keepVersions > 0 {
		if err := a.prune(ctx, sessionKey); err != nil {
			return versionKey, err
		}
	}
	return versionKey, nil
}

func (a *Archive) LoadLatest(ctx context.Context, sessionKey string) (schema.Snapshot, error) {
	reader, err := a.store.Get(ctx, storage.BuildLatestSnapshotPath(sessionKey))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return schema.Snapshot{}, ErrNotFound
		}
		return schema.Snapshot{}, err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return schema.Snapshot{}, fmt.Errorf("read archived snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// Versions lists the versioned files of a session, oldest first.
func (a *Archive) Versions(ctx context.Context, sessionKey string) ([]storage.ObjectInfo, error) {
	objects, err := a.store.List(ctx, storage.SnapshotPrefix(sessionKey))
	if err != nil {
		return nil, err
	}
	versions := make([]storage.ObjectInfo, 0, len(objects))
	for _, object := range objects {
		if storage.IsLatestSnapshotPath(object.Key) {
			continue
		}
		versions = append(versions, object)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Key < versions[j].Key })
	return versions, nil
}

// Ping checks the underlying store when it supports it.
func (a *Archive) Ping(ctx context.Context) error {
	if pinger, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (a *Archive) prune(ctx context.Context, sessionKey string) error {
	versions, err := a.Versions(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("list snapshot versions: %w", err)
	}
	if len(versions) <= a.keepVersions {
		return nil
	}
	stale := versions[:len(versions)-a.keepVersions]
	if batch, ok := a.store.(batchDeleter); ok {
		keys := make([]string, 0, len(stale))
		for _, object := range stale {
			keys = append(keys, object.Key)
		}
		if err := batch.DeleteMany(ctx, keys); err != nil {
			return fmt.Errorf("prune snapshot versions: %w", err)
		}
		return nil
	}
	for _, object := range stale {
		if err := a.store.Delete(ctx, object.Key); err != nil {
			return fmt.Errorf("prune snapshot version: %w", err)
		}
	}
	return nil
}

func (a *Archive) put(ctx context.Context, key string, data []byte, meta map[string]string) error {
	opts := storage.PutOptions{ContentType: contentType, Metadata: meta}
	if _, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return err
	}
	return nil
}

func snapshotMetadata(snapshot schema.Snapshot) map[string]string {
	meta := map[string]string{"tables": strconv.Itoa(snapshot.Len())}
	if !snapshot.CapturedAt.IsZero() {
		meta["captured-at"] = snapshot.CapturedAt.UTC().Format(time.RFC3339)
	}
	return meta
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
