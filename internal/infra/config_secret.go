package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SecretsFile is looked up next to config.yaml.
const SecretsFile = "secrets.yaml"

// SecretConfig holds credentials kept out of config.yaml.
type SecretConfig struct {
	CoinGecko struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"coingecko"`
	Redis struct {
		Password string `yaml:"password"`
	} `yaml:"redis"`
}

// LoadSecretConfig loads credentials from a separate yaml file.
// A missing file is reported with an error satisfying os.IsNotExist.
func LoadSecretConfig(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SecretConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse secret config: %w", err)
	}

	return &cfg, nil
}

// secretsFor loads the secrets file that sits beside configPath, if any.
func secretsFor(configPath string) (*SecretConfig, error) {
	s, err := LoadSecretConfig(filepath.Join(filepath.Dir(configPath), SecretsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return s, err
}

// apply copies non-empty secrets into cfg.
func (s *SecretConfig) apply(cfg *Config) {
	if s == nil {
		return
	}
	if s.CoinGecko.APIKey != "" {
		cfg.API.CoinGecko.APIKey = s.CoinGecko.APIKey
	}
	if s.Redis.Password != "" {
		cfg.Storage.Redis.Password = s.Redis.Password
	}
}
