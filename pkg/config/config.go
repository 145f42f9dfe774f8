package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/damay/pkg/logging"
	"github.com/go-go-golems/damay/pkg/persistence/chatstore"
	"github.com/go-go-golems/damay/pkg/redisstream"
)

const (
	AppName   = "damay"
	EnvPrefix = "DAMAY"

	DefaultEndpoint     = "http://localhost:5000/chat"
	// DefaultStoreBackend keeps the log for one run of the process only.
	DefaultStoreBackend = chatstore.BackendMemory
)

// DefaultTimeout of zero leaves an exchange unbounded.
const DefaultTimeout time.Duration = 0

const (
	ModeAuto = "auto"
	ModeTUI  = "tui"
	ModeLine = "line"
)

// Settings is the full client configuration.
type Settings struct {
	Endpoint    string               `mapstructure:"endpoint"`
	Timeout     time.Duration        `mapstructure:"timeout"`
	SendHistory bool                 `mapstructure:"send-history"`
	Welcome     string               `mapstructure:"welcome"`
	Mode        string               `mapstructure:"mode"`
	Store       chatstore.Settings   `mapstructure:"store"`
	Events      redisstream.Settings `mapstructure:"events"`
	Log         logging.Settings     `mapstructure:"log"`
}

// DefaultDir is the directory holding the config file, logs and stores.
func DefaultDir() string {
	dir, err := homedir.Expand("~/." + AppName)
	if err != nil {
		return "." + AppName
	}
	return dir
}

func DefaultConfigFile() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// SetDefaults registers every known key so that env vars bind for all of
// them when unmarshalling.
func SetDefaults(v *viper.Viper) {
	dir := DefaultDir()
	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("send-history", true)
	v.SetDefault("welcome", "")
	v.SetDefault("mode", ModeAuto)

	v.SetDefault("store.backend", DefaultStoreBackend)
	v.SetDefault("store.session-key", chatstore.DefaultSessionKey)
	v.SetDefault("store.dir", filepath.Join(dir, "sessions"))
	v.SetDefault("store.db", filepath.Join(dir, "damay.db"))
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.redis-addr", "localhost:6379")
	v.SetDefault("store.redis-db", 0)
	v.SetDefault("store.redis-ttl", time.Duration(0))
	v.SetDefault("store.redis-password", "")

	v.SetDefault("events.redis-enabled", false)
	v.SetDefault("events.redis-addr", "localhost:6379")
	v.SetDefault("events.redis-group", "damay-tail")
	v.SetDefault("events.redis-consumer", "tail-1")
	v.SetDefault("events.stream", redisstream.DefaultStream)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.with-caller", false)
	v.SetDefault("log.json", false)
	v.SetDefault("log.max-size-mb", 10)
	v.SetDefault("log.max-backups", 3)
}

// NewViper returns a viper instance with defaults and DAMAY_* env binding.
// Nested keys map to env vars by replacing dots and dashes with
// underscores, e.g. store.redis-addr is DAMAY_STORE_REDIS_ADDR.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfigFile loads path into v. A missing file is not an error; an empty
// path selects the default location.
func ReadConfigFile(v *viper.Viper, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigFile()
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "expand config path %s", path)
	}
	if _, err := os.Stat(expanded); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	v.SetConfigFile(expanded)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return "", errors.Wrapf(err, "read config %s", expanded)
	}
	return expanded, nil
}

// Load decodes v into Settings and normalizes paths.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) normalize() error {
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
	if s.Mode == "" {
		s.Mode = ModeAuto
	}
	for _, p := range []*string{&s.Store.Dir, &s.Store.DB, &s.Log.File} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return errors.Wrapf(err, "expand path %s", *p)
		}
		*p = expanded
	}
	return nil
}

func (s *Settings) Validate() error {
	if s.Endpoint == "" {
		return errors.New("endpoint is empty")
	}
	if s.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", s.Timeout)
	}
	switch s.Mode {
	case ModeAuto, ModeTUI, ModeLine:
	default:
		return errors.Errorf("unknown mode %q (want auto, tui or line)", s.Mode)
	}
	switch strings.ToLower(s.Store.Backend) {
	case "", chatstore.BackendMemory, chatstore.BackendFile, chatstore.BackendSQLite, chatstore.BackendRedis:
	default:
		return errors.Errorf("unknown store backend %q", s.Store.Backend)
	}
	return nil
}

// fileDocument is the on-disk layout written by WriteFile. Durations are
// stored as strings so the file stays readable.
type fileDocument struct {
	Endpoint    string `yaml:"endpoint"`
	Timeout     string `yaml:"timeout"`
	SendHistory bool   `yaml:"send-history"`
	Welcome     string `yaml:"welcome,omitempty"`
	Mode        string `yaml:"mode"`
	Store       struct {
		Backend    string `yaml:"backend"`
		SessionKey string `yaml:"session-key"`
		Dir        string `yaml:"dir,omitempty"`
		DB         string `yaml:"db,omitempty"`
		RedisAddr  string `yaml:"redis-addr,omitempty"`
		RedisDB    int    `yaml:"redis-db,omitempty"`
		RedisTTL   string `yaml:"redis-ttl,omitempty"`
	} `yaml:"store"`
	Events redisstream.Settings `yaml:"events"`
	Log    logging.Settings     `yaml:"log"`
}

// Marshal renders s as a YAML config file.
func Marshal(s Settings) ([]byte, error) {
	var doc fileDocument
	doc.Endpoint = s.Endpoint
	doc.Timeout = s.Timeout.String()
	doc.SendHistory = s.SendHistory
	doc.Welcome = s.Welcome
	doc.Mode = s.Mode
	doc.Store.Backend = s.Store.Backend
	doc.Store.SessionKey = s.Store.SessionKey
	doc.Store.Dir = s.Store.Dir
	doc.Store.DB = s.Store.DB
	doc.Store.RedisAddr = s.Store.RedisAddr
	doc.Store.RedisDB = s.Store.RedisDB
	if s.Store.RedisTTL > 0 {
		doc.Store.RedisTTL = s.Store.RedisTTL.String()
	}
	doc.Events = s.Events
	doc.Log = s.Log

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return out, nil
}

// WriteFile writes s to path, replacing any existing file atomically.
func WriteFile(path string, s Settings) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create config directory for %s", path)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return errors.Wrapf(err, "write temporary config %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "rename %s to %s", tmpPath, path)
	}
	return nil
}
