package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	groups "github.com/goliatone/go-groups"
	"github.com/goliatone/go-groups/internal/coerce"
	"gopkg.in/yaml.v3"
)

// Format names a FileStore document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks a format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("state: unsupported file extension %q", filepath.Ext(path))
	}
}

// FileStore keeps every group's id list in one document file. TOML has no
// null, so null entries are dropped when saving to a .toml file.
type FileStore struct {
	path   string
	format Format
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

type fileDocument struct {
	Groups map[string]fileEntry `json:"groups" yaml:"groups" toml:"groups"`
}

type fileEntry struct {
	IDs       any               `json:"ids" yaml:"ids" toml:"ids"`
	Revision  int64             `json:"revision" yaml:"revision" toml:"revision"`
	UpdatedAt string            `json:"updated_at,omitempty" yaml:"updated_at,omitempty" toml:"updated_at,omitempty"`
	Extra     map[string]string `json:"extra,omitempty" yaml:"extra,omitempty" toml:"extra,omitempty"`
}

// NewFileStore returns a store backed by path. The file is created on the
// first save.
func NewFileStore(path string) (*FileStore, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{
		path:   path,
		format: format,
		logger: slog.Default().With("component", "state.file", "format", string(format)),
		now:    time.Now,
	}, nil
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, key string) (groups.IDList, Meta, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, Meta{}, false, err
	}
	entry, ok := doc.Groups[key]
	if !ok {
		return nil, Meta{}, false, nil
	}
	values, err := coerce.Ints(entry.IDs)
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: ids for %q: %w", key, err)
	}
	return groups.IDsFromPointers(values), entry.meta(), true, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, key string, ids groups.IDList, meta Meta) (Meta, error) {
	if err := validateKey(key); err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return Meta{}, err
	}
	current := doc.Groups[key]
	if err := checkRevision(meta.ETag, current.Revision); err != nil {
		return Meta{}, err
	}

	saved := cloneMeta(meta)
	saved.ETag = revisionETag(current.Revision + 1)
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = s.now().UTC()
	}
	doc.Groups[key] = fileEntry{
		IDs:       s.encodeIDs(key, ids),
		Revision:  current.Revision + 1,
		UpdatedAt: saved.UpdatedAt.Format(time.RFC3339Nano),
		Extra:     cloneMeta(saved).Extra,
	}
	if err := s.write(doc); err != nil {
		return Meta{}, err
	}
	return saved, nil
}

// Keys returns every stored key in ascending order.
func (s *FileStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc.Groups))
	for key := range doc.Groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements ClosableStore.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) encodeIDs(key string, ids groups.IDList) []any {
	out := make([]any, 0, len(ids))
	dropped := 0
	for _, id := range ids {
		if !id.Valid {
			if s.format == FormatTOML {
				dropped++
				continue
			}
			out = append(out, nil)
			continue
		}
		out = append(out, id.Value)
	}
	if dropped > 0 {
		s.logger.Warn("dropped null ids", "key", key, "count", dropped)
	}
	return out
}

func (s *FileStore) read() (fileDocument, error) {
	doc := fileDocument{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc.Groups = map[string]fileEntry{}
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("state: read %s: %w", s.path, err)
	}

	switch s.format {
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		err = decoder.Decode(&doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		_, err = toml.Decode(string(data), &doc)
	}
	if err != nil {
		return doc, fmt.Errorf("state: decode %s: %w", s.path, err)
	}
	if doc.Groups == nil {
		doc.Groups = map[string]fileEntry{}
	}
	return doc, nil
}

// write replaces the document atomically through a temporary file in the
// same directory.
func (s *FileStore) write(doc fileDocument) error {
	var buf bytes.Buffer
	var err error
	switch s.format {
	case FormatJSON:
		encoder := json.NewEncoder(&buf)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(doc)
	case FormatYAML:
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		err = encoder.Encode(doc)
		if err == nil {
			err = encoder.Close()
		}
	case FormatTOML:
		err = toml.NewEncoder(&buf).Encode(doc)
	}
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state: replace %s: %w", s.path, err)
	}
	return nil
}

func (e fileEntry) meta() Meta {
	meta := Meta{ETag: revisionETag(e.Revision), Extra: e.Extra}
	if e.UpdatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, e.UpdatedAt); err == nil {
			meta.UpdatedAt = parsed
		}
	}
	return cloneMeta(meta)
}
