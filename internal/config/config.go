package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

const configDir = ".friendchat"
const configFile = "config.json"

// DefaultEndpoint is the chat-completions URL used when none is configured.
const DefaultEndpoint = "https://ark.cn-beijing.volces.com/api/v3/chat/completions"

const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

// Environment overrides, also read from an optional .env file.
const (
	EnvAPIKey   = "FRIENDCHAT_API_KEY"
	EnvEndpoint = "FRIENDCHAT_ENDPOINT"
)

type Config struct {
	Endpoint     string            `json:"endpoint"`
	APIKeys      map[string]string `json:"api_keys,omitempty"`
	DefaultModel string            `json:"default_model,omitempty"`
	DefaultAPIID string            `json:"default_api_id,omitempty"`
	Storage      string            `json:"storage,omitempty"`
	LogLevel     string            `json:"log_level,omitempty"`
	Profile      string            `json:"-"`

	// Environment values are kept apart so Save never persists them.
	envKey      string
	envEndpoint string
}

// Dir returns the directory holding config, data and log files.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

func configPath(profile string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	filename := configFile
	if profile != "" {
		filename = fmt.Sprintf("config-%s.json", profile)
	}
	return filepath.Join(dir, filename), nil
}

func Load(profile string) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	path, err := configPath(profile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.Profile = profile
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Storage == "" {
		c.Storage = StorageJSON
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.APIKeys == nil {
		c.APIKeys = make(map[string]string)
	}
}

func (c *Config) applyEnv() {
	c.envEndpoint = os.Getenv(EnvEndpoint)
	c.envKey = os.Getenv(EnvAPIKey)
}

// EndpointURL returns the effective endpoint, FRIENDCHAT_ENDPOINT first.
func (c *Config) EndpointURL() string {
	if c.envEndpoint != "" {
		return c.envEndpoint
	}
	return c.Endpoint
}

func (c *Config) Save() error {
	path, err := configPath(c.Profile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Credential resolves the bearer credential for an API id. A configured key
// wins, then FRIENDCHAT_API_KEY; otherwise the id itself is the credential.
func (c *Config) Credential(apiID string) string {
	if key, ok := c.APIKeys[apiID]; ok && key != "" {
		return key
	}
	if c.envKey != "" {
		return c.envKey
	}
	return apiID
}

// SetKey stores the secret for an API id. An empty secret removes it.
func (c *Config) SetKey(apiID, secret string) {
	if c.APIKeys == nil {
		c.APIKeys = make(map[string]string)
	}
	if secret == "" {
		delete(c.APIKeys, apiID)
		return
	}
	c.APIKeys[apiID] = secret
}

// KeyIDs returns the configured API ids in sorted order.
func (c *Config) KeyIDs() []string {
	ids := make([]string, 0, len(c.APIKeys))
	for id := range c.APIKeys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DataPath returns the friend store location for the configured backend.
func (c *Config) DataPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	name := "friends"
	if c.Profile != "" {
		name += "-" + c.Profile
	}
	if c.Storage == StorageSQLite {
		return filepath.Join(dir, name+".db"), nil
	}
	return filepath.Join(dir, name+".json"), nil
}

// LogPath returns the log file location for this profile.
func (c *Config) LogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	name := "friendchat.log"
	if c.Profile != "" {
		name = fmt.Sprintf("friendchat-%s.log", c.Profile)
	}
	return filepath.Join(dir, name), nil
}

func (c *Config) profileFlag() string {
	if c.Profile == "" {
		return ""
	}
	return " --profile " + c.Profile
}

func (c *Config) Validate() error {
	pf := c.profileFlag()
	endpoint := c.EndpointURL()
	if endpoint == "" {
		return fmt.Errorf("endpoint not set. Run: friendchat%s set endpoint <url>", pf)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http(s) URL, got %q", endpoint)
	}
	switch c.Storage {
	case StorageJSON, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (valid: json, sqlite)", c.Storage)
	}
	return nil
}

func ListProfiles() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config directory: %w", err)
	}
	var profiles []string
	for _, e := range entries {
		name := e.Name()
		if name == configFile {
			profiles = append(profiles, "default")
			continue
		}
		if strings.HasPrefix(name, "config-") && strings.HasSuffix(name, ".json") {
			profiles = append(profiles, strings.TrimSuffix(strings.TrimPrefix(name, "config-"), ".json"))
		}
	}
	return profiles, nil
}

func ProfileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}
