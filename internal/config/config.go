package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const configFileName = "config.json"

// Store backends.
const (
	BackendSnapshot  = "snapshot"
	BackendRTDB      = "rtdb"
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DataDir string `json:"data_dir"`
	DBPath  string `json:"-"`

	Backend              string `json:"backend"`
	SnapshotPath         string `json:"snapshot_path,omitempty"`
	RTDBURL              string `json:"rtdb_url,omitempty"`
	RTDBAuth             string `json:"rtdb_auth,omitempty"`
	FirestoreProject     string `json:"firestore_project,omitempty"`
	FirestoreCredentials string `json:"firestore_credentials,omitempty"`

	// Root keys of the persona and conversation trees.
	PersonasRoot      string `json:"personas_root"`
	ConversationsRoot string `json:"conversations_root"`

	// AnonSecret is the base64 HMAC key for tenant labels.
	AnonSecret string `json:"anon_secret"`

	WriteTimeout time.Duration `json:"-"`
	FetchTimeout time.Duration `json:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".chatview")
	return Config{
		Host:              "127.0.0.1",
		Port:              8080,
		DataDir:           dataDir,
		DBPath:            filepath.Join(dataDir, "mirror.db"),
		Backend:           BackendSnapshot,
		SnapshotPath:      filepath.Join(dataDir, "snapshot.json"),
		PersonasRoot:      "oshis",
		ConversationsRoot: "chats",
		WriteTimeout:      30 * time.Second,
		FetchTimeout:      20 * time.Second,
	}, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the
// process environment without overriding variables that are
// already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file and env,
// without parsing CLI flags.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	// The data dir locates the config file, so it is resolved
	// from env first.
	if v := os.Getenv("CHATVIEW_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.SnapshotPath = filepath.Join(v, "snapshot.json")
	}

	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()

	if err := cfg.ensureAnonSecret(); err != nil {
		return cfg, fmt.Errorf("ensuring anonymization secret: %w", err)
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, "mirror.db")
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, configFileName)
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Host                 string `json:"host"`
		Port                 int    `json:"port"`
		Backend              string `json:"backend"`
		SnapshotPath         string `json:"snapshot_path"`
		RTDBURL              string `json:"rtdb_url"`
		RTDBAuth             string `json:"rtdb_auth"`
		FirestoreProject     string `json:"firestore_project"`
		FirestoreCredentials string `json:"firestore_credentials"`
		PersonasRoot         string `json:"personas_root"`
		ConversationsRoot    string `json:"conversations_root"`
		AnonSecret           string `json:"anon_secret"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	setIf(&c.Host, file.Host)
	if file.Port > 0 {
		c.Port = file.Port
	}
	setIf(&c.Backend, file.Backend)
	setIf(&c.SnapshotPath, file.SnapshotPath)
	setIf(&c.RTDBURL, file.RTDBURL)
	setIf(&c.RTDBAuth, file.RTDBAuth)
	setIf(&c.FirestoreProject, file.FirestoreProject)
	setIf(&c.FirestoreCredentials, file.FirestoreCredentials)
	setIf(&c.PersonasRoot, file.PersonasRoot)
	setIf(&c.ConversationsRoot, file.ConversationsRoot)
	setIf(&c.AnonSecret, file.AnonSecret)
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) ensureAnonSecret() error {
	if c.AnonSecret != "" {
		return nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("generating secret: %w", err)
	}
	secret := base64.StdEncoding.EncodeToString(b)
	c.AnonSecret = secret

	return c.saveKey("anon_secret", secret)
}

// saveKey sets one key in the config file, keeping the others.
func (c *Config) saveKey(key string, value any) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("existing config invalid: %w", err)
		}
	}

	existing[key] = value
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("CHATVIEW_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("CHATVIEW_SNAPSHOT"); v != "" {
		c.SnapshotPath = v
	}
	if v := os.Getenv("CHATVIEW_RTDB_URL"); v != "" {
		c.RTDBURL = v
	}
	if v := os.Getenv("CHATVIEW_RTDB_AUTH"); v != "" {
		c.RTDBAuth = v
	}
	if v := os.Getenv("CHATVIEW_FIRESTORE_PROJECT"); v != "" {
		c.FirestoreProject = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		c.FirestoreCredentials = v
	}
	if v := os.Getenv("CHATVIEW_ANON_SECRET"); v != "" {
		c.AnonSecret = v
	}
	if v := os.Getenv("CHATVIEW_DATA_DIR"); v != "" {
		c.DataDir = v
	}
}

// AnonKey decodes AnonSecret.
func (c *Config) AnonKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.AnonSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid anonymization secret: %w", err)
	}
	return key, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSnapshot:
		if c.SnapshotPath == "" {
			return errors.New("snapshot backend requires a snapshot path")
		}
	case BackendRTDB:
		if c.RTDBURL == "" {
			return errors.New("rtdb backend requires CHATVIEW_RTDB_URL")
		}
	case BackendFirestore:
		if c.FirestoreProject == "" {
			return errors.New(
				"firestore backend requires CHATVIEW_FIRESTORE_PROJECT",
			)
		}
	case BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.PersonasRoot == "" || c.ConversationsRoot == "" {
		return errors.New("personas and conversations roots must be set")
	}
	return nil
}

// RegisterSourceFlags registers the flags that select a store
// backend.
func RegisterSourceFlags(fs *flag.FlagSet) {
	fs.String(
		"backend", BackendSnapshot,
		"Store backend: snapshot, rtdb, firestore or sqlite",
	)
	fs.String("snapshot", "", "Snapshot JSON file (snapshot backend)")
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8080, "Port to listen on")
	RegisterSourceFlags(fs)
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "backend":
			cfg.Backend = f.Value.String()
		case "snapshot":
			cfg.SnapshotPath = f.Value.String()
		}
	})
}
