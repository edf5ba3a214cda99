package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
)

const (
	configFile  = "config.yaml"
	sessionFile = "session.msgpack"
)

// ErrNotInitialized is returned when no configuration was saved yet
var ErrNotInitialized = errors.New("debugger is not initialized, run init first")

// Store manages the cache directory of the debugger
type Store struct {
	dir string
	fs  afs.Service
}

// Open returns a store in the user cache directory, XDG_CACHE_HOME is honored
func Open(app string) (*Store, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return NewStore(filepath.Join(base, app)), nil
}

// NewStore returns a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir, fs: afs.New()}
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// BuildDir returns the scratch directory holding the instrumented copy
func (s *Store) BuildDir() string {
	return filepath.Join(s.dir, "build")
}

// CacheDir returns the GOCACHE used for instrumented builds
func (s *Store) CacheDir() string {
	return filepath.Join(s.dir, "gocache")
}

// BinDir returns the directory of built artifacts
func (s *Store) BinDir() string {
	return filepath.Join(s.dir, "bin")
}

// Load reads the saved configuration
func (s *Store) Load(ctx context.Context) (*Config, error) {
	data, err := s.download(ctx, configFile)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotInitialized
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %v: %w", configFile, err)
	}
	cfg.Init()
	return cfg, nil
}

// Save writes the configuration
func (s *Store) Save(ctx context.Context, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.upload(ctx, configFile, data)
}

// LoadSession reads the last session, it returns nil when none was recorded
func (s *Store) LoadSession(ctx context.Context) (*Session, error) {
	data, err := s.download(ctx, sessionFile)
	if err != nil || data == nil {
		return nil, err
	}
	session := &Session{}
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(session); err != nil {
		return nil, fmt.Errorf("failed to decode %v: %w", sessionFile, err)
	}
	if session.Schema != sessionSchema {
		return nil, nil
	}
	return session, nil
}

// SaveSession writes the session record
func (s *Store) SaveSession(ctx context.Context, session *Session) error {
	session.Schema = sessionSchema
	buffer := &bytes.Buffer{}
	if err := msgpack.NewEncoder(buffer).Encode(session); err != nil {
		return err
	}
	return s.upload(ctx, sessionFile, buffer.Bytes())
}

func (s *Store) download(ctx context.Context, name string) ([]byte, error) {
	location := filepath.Join(s.dir, name)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil || !exists {
		return nil, err
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", location, err)
	}
	return data, nil
}

func (s *Store) upload(ctx context.Context, name string, data []byte) error {
	location := filepath.Join(s.dir, name)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %v: %w", location, err)
	}
	return nil
}
