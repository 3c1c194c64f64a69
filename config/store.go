package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "MURMUR"
	FileName   = "config.yaml"
	EnvFile    = ".env"
	envConfig  = "MURMUR_CONFIG"
	appDirName = "murmur"
)

// Options select the files Load reads. Empty fields fall back to the defaults.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Store owns the live Config. Readers take value snapshots; writers go through viper.
type Store struct {
	v    *viper.Viper
	path string

	// reloadMu serializes file access through v and keeps listener calls in
	// reload order.
	reloadMu sync.Mutex

	mu        sync.RWMutex
	cur       Config
	listeners []func(old, cur Config)
}

// DefaultDir is the per-user configuration directory.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

// ResolvePath picks the config file: explicit path > $MURMUR_CONFIG > DefaultDir.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if env := os.Getenv(envConfig); env != "" {
		return filepath.Abs(env)
	}
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

func Load(opts Options) (*Store, error) {
	path, err := ResolvePath(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	loadEnvFiles(opts.EnvFile, filepath.Join(filepath.Dir(path), EnvFile))

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Store{v: v, path: path}
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	s.cur = cfg
	return s, nil
}

// loadEnvFiles loads the explicit .env (if any), the one next to the config
// file and one in the working directory. Existing variables are never overridden.
func loadEnvFiles(explicit, besideConfig string) {
	for _, p := range []string{explicit, besideConfig, EnvFile} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		godotenv.Load(p)
	}
}

func (s *Store) read() (Config, error) {
	if err := s.v.ReadInConfig(); err != nil && !isMissing(err) {
		return Config{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if cfg.Remote.Token == "" {
		cfg.Remote.Token = tokenFromKeyring()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isMissing(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

func (s *Store) Path() string { return s.path }

func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.clone()
}

func (c Config) clone() Config {
	if c.Text.Keywords != nil {
		kw := make(map[string]string, len(c.Text.Keywords))
		for k, v := range c.Text.Keywords {
			kw[k] = v
		}
		c.Text.Keywords = kw
	}
	return c
}

// OnChange registers fn to run after every successful reload.
func (s *Store) OnChange(fn func(old, cur Config)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Reload re-reads the file. An invalid file leaves the current config in place.
func (s *Store) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cfg, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.cur
	s.cur = cfg
	listeners := append([]func(old, cur Config){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(old.clone(), cfg.clone())
	}
	return nil
}

// Watch reloads on file changes; errors go to onErr.
func (s *Store) Watch(onErr func(error)) {
	s.v.OnConfigChange(func(fsnotify.Event) {
		if err := s.Reload(); err != nil && onErr != nil {
			onErr(err)
		}
	})
	s.v.WatchConfig()
}

// SaveWidgetPosition persists the widget position, creating the file if needed.
func (s *Store) SaveWidgetPosition(x, y int) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	// Write through a file-only viper so env and keyring values never land on disk.
	fv := viper.New()
	fv.SetConfigFile(s.path)
	fv.SetConfigType("yaml")
	if err := fv.ReadInConfig(); err != nil && !isMissing(err) {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	fv.Set("widget.x", x)
	fv.Set("widget.y", y)
	if err := fv.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.cur.Widget.X = x
	s.cur.Widget.Y = y
	s.mu.Unlock()
	return nil
}
