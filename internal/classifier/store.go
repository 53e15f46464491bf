package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoArtifact is returned by an ArtifactStore that holds no artifact yet.
var ErrNoArtifact = errors.New("no model artifact stored")

// ArtifactStore persists trained artifacts across restarts.
type ArtifactStore interface {
	Save(ctx context.Context, a *Artifact) error
	Latest(ctx context.Context) (*Artifact, error)
	Versions(ctx context.Context) ([]string, error)
}

// ─── File store ───────────────────────────────────────────────────────────────

const latestFile = "LATEST"

// FileStore keeps one JSON file per artifact version plus a LATEST pointer.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(_ context.Context, a *Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, a.Version+".json"), data); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.dir, latestFile), []byte(a.Version))
}

func (s *FileStore) Latest(_ context.Context) (*Artifact, error) {
	v, err := os.ReadFile(filepath.Join(s.dir, latestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, fmt.Errorf("read latest pointer: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, strings.TrimSpace(string(v))+".json"))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", v, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", v, err)
	}
	return &a, nil
}

// Versions lists stored versions, oldest first.
func (s *FileStore) Versions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok && !e.IsDir() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ─── Redis store ──────────────────────────────────────────────────────────────

// RedisStore keeps artifacts under <prefix>:artifact:<version>, the live
// version under <prefix>:latest and a version index in the sorted set
// <prefix>:versions scored by training time.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix defaults to
// "insureguard:model".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "insureguard:model"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStore) Save(ctx context.Context, a *Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key("artifact", a.Version), data, 0)
		p.Set(ctx, s.key("latest"), a.Version, 0)
		p.ZAdd(ctx, s.key("versions"), redis.Z{Score: float64(a.TrainedAt.UnixNano()) / float64(time.Second), Member: a.Version})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save artifact %s: %w", a.Version, err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context) (*Artifact, error) {
	version, err := s.client.Get(ctx, s.key("latest")).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, fmt.Errorf("redis get latest: %w", err)
	}
	data, err := s.client.Get(ctx, s.key("artifact", version)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis get artifact %s: %w", version, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", version, err)
	}
	return &a, nil
}

// Versions lists stored versions, oldest first.
func (s *RedisStore) Versions(ctx context.Context) ([]string, error) {
	out, err := s.client.ZRange(ctx, s.key("versions"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list versions: %w", err)
	}
	return out, nil
}
