package util

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const Name = "glyptodon"
const ConfigFileName = "config.yaml"

// EnvPrefix is prepended to the env names below, e.g. GLYPTODON_SSLDOMAIN
const EnvPrefix = "GLYPTODON_"

//go:embed config_default.yaml
var embeddedConfig []byte

var validate = validator.New()

type Conf struct {
	Host         string   `yaml:"host" env:"HOST"`
	SshPort      int      `yaml:"sshPort" env:"SSHPORT" validate:"gt=0,lte=65535"`
	HttpPort     int      `yaml:"httpPort" env:"HTTPPORT" validate:"gt=0,lte=65535"`
	SslDomain    string   `yaml:"sslDomain" env:"SSLDOMAIN" validate:"required,hostname"`
	Username     string   `yaml:"username" env:"USERNAME" validate:"required,alphanum"`
	DisplayName  string   `yaml:"displayName" env:"DISPLAYNAME"`
	Summary      string   `yaml:"summary" env:"SUMMARY"`
	ContentDir   string   `yaml:"contentDir" env:"CONTENTDIR" validate:"required"`
	DataDir      string   `yaml:"dataDir" env:"DATADIR"`
	FederateWiki bool     `yaml:"federateWiki" env:"FEDERATEWIKI"`
	AutoSsl      bool     `yaml:"autoSsl" env:"AUTOSSL"`
	LogLevel     string   `yaml:"logLevel" env:"LOGLEVEL" validate:"omitempty,oneof=debug info warn error"`
	AdminKeys    []string `yaml:"adminKeys" env:"ADMINKEYS"`
	PublicKeyPem string   `yaml:"publicKeyPem"`
}

type AppConfig struct {
	Conf Conf `yaml:"conf"`
}

// BaseURL returns the public https base of this instance
func (c Conf) BaseURL() string {
	return fmt.Sprintf("https://%s", c.SslDomain)
}

// Handle returns the fediverse handle, e.g. alice@blog.example
func (c Conf) Handle() string {
	return fmt.Sprintf("%s@%s", c.Username, c.SslDomain)
}

// ConfigStore owns the on-disk config file. Identity fields are read once
// at boot by the callers that need them, Reload serves the rest.
type ConfigStore struct {
	mu       sync.RWMutex
	path     string
	conf     AppConfig
	onChange []func(Conf)
}

// LoadConfig reads the config file (local dir first, then the user config
// dir), falling back to the embedded defaults when none exists yet.
func LoadConfig() (*ConfigStore, error) {
	return LoadConfigFrom(ResolveFilePath(ConfigFileName))
}

func LoadConfigFrom(path string) (*ConfigStore, error) {
	s := &ConfigStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ConfigStore) load() error {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		log.Warn("Config file not found, using embedded defaults", "path", s.path)
		buf = embeddedConfig

		if writeErr := os.WriteFile(s.path, embeddedConfig, 0644); writeErr != nil {
			log.Warn("Could not write default config file", "path", s.path, "err", writeErr)
		} else {
			log.Info("Created default config file", "path", s.path)
		}
	}

	var c AppConfig
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return fmt.Errorf("in config file: %w", err)
	}

	lookuper := envconfig.PrefixLookuper(EnvPrefix, envconfig.OsLookuper())
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &c.Conf,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("config env overlay: %w", err)
	}

	if err := validate.Struct(&c.Conf); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	s.conf = c
	s.mu.Unlock()
	return nil
}

// Conf returns a snapshot of the current configuration
func (s *ConfigStore) Conf() Conf {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conf.Conf
}

func (s *ConfigStore) Path() string {
	return s.path
}

// Reload re-reads the config file and notifies subscribers. The previous
// config stays in effect when the new one fails to load or validate.
func (s *ConfigStore) Reload() error {
	if err := s.load(); err != nil {
		return err
	}

	s.mu.RLock()
	conf := s.conf.Conf
	subscribers := make([]func(Conf), len(s.onChange))
	copy(subscribers, s.onChange)
	s.mu.RUnlock()

	for _, fn := range subscribers {
		fn(conf)
	}

	log.Info("Configuration reloaded", "path", s.path)
	return nil
}

// OnChange registers a callback invoked after every successful Reload
func (s *ConfigStore) OnChange(fn func(Conf)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// PublicKeyPem returns the persisted actor public key record, empty until
// the first key generation ran.
func (s *ConfigStore) PublicKeyPem() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conf.Conf.PublicKeyPem
}

// SetPublicKeyPem updates the actor public key record and persists the
// config file atomically. Writing the identical value is a no-op.
func (s *ConfigStore) SetPublicKeyPem(pem string) error {
	s.mu.Lock()
	if s.conf.Conf.PublicKeyPem == pem {
		s.mu.Unlock()
		return nil
	}
	s.conf.Conf.PublicKeyPem = pem
	data, err := yaml.Marshal(&s.conf)
	path := s.path
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to persist config: %w", err)
	}
	return nil
}
