package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for the RFQ crawler.
type Config struct {
	// RootPath is the shared folder holding project folders.
	RootPath string `toml:"root_path"`
	// FilterTags are case-insensitive substrings marking folders to skip.
	FilterTags []string `toml:"filter_tags"`
	// FileFilterTags are file suffixes excluded from hashing and listings.
	FileFilterTags []string `toml:"file_filter_tags"`
	// RFQFolderNames are the RFQ root folder names inside a project.
	RFQFolderNames []string `toml:"rfq_folder_names"`

	BaseDir  string `toml:"base_dir"`
	LogDir   string `toml:"log_dir"`
	LogLevel string `toml:"log_level"` // "debug", "info" (default), "warn" or "error"

	Database   DatabaseConfig   `toml:"database"`
	Filesystem FilesystemConfig `toml:"filesystem"`
	Snapshot   SnapshotConfig   `toml:"snapshot"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// DatabaseConfig selects the store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "mongo"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite

	// Mongo-specific fields (only used when Type == "mongo")
	MongoURI string `toml:"mongo_uri,omitempty"`
	MongoDB  string `toml:"mongo_db,omitempty"`
}

// FilesystemConfig holds glob patterns for files left out of hashing.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
	// IgnoreFile is an optional file of further patterns, one per line.
	IgnoreFile string `toml:"ignore_file,omitempty"`
}

// SnapshotConfig controls the store snapshot taken after each crawl.
type SnapshotConfig struct {
	Enabled bool `toml:"enabled"`
	Encrypt bool `toml:"encrypt"`
}

// ArchiveConfig selects where snapshots are uploaded.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible services
}

// EncryptionConfig holds paths to the age key pair used for snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig returns the built-in defaults with data paths under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		FilterTags:     []string{"Template", "archive"},
		FileFilterTags: []string{".db"},
		RFQFolderNames: []string{"RFQ", "Supplier RFQ", "Contractor", "1-RFQ"},
		BaseDir:        baseDir,
		LogDir:         filepath.Join(baseDir, "log"),
		LogLevel:       "info",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
			MongoDB: "rfq_tracker",
		},
		Filesystem: FilesystemConfig{
			Ignore: []string{"~$*", "Thumbs.db", ".DS_Store"},
		},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			Name:   "local",
			FSRoot: filepath.Join(baseDir, "archive"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "rfq.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "rfq.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r over the values already in base.
func (m *Manager) Read(r io.Reader, base *Config) (*Config, error) {
	cfg := *base
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path. Keys missing from the file keep
// their defaults for baseDir.
func ReadFromFile(path, baseDir string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f, NewConfig(baseDir))
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load always returns a usable Config. When the file is missing or cannot be
// parsed, the defaults are returned together with the error, which callers
// report as a warning. MONGO_URI and MONGO_DB override the database settings.
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path, baseDir)
	if err != nil {
		cfg = NewConfig(baseDir)
	}
	applyEnv(cfg)
	return cfg, err
}

func applyEnv(cfg *Config) {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		cfg.Database.MongoURI = uri
	}
	if db := os.Getenv("MONGO_DB"); db != "" {
		cfg.Database.MongoDB = db
	}
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
