/*
Package config manages TOML config for wordmend.
*/
package config

import (
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bastiangx/wordmend/internal/utils"
	"github.com/bastiangx/wordmend/pkg/fuzzy"
	"github.com/bastiangx/wordmend/pkg/source"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Restore RestoreConfig `toml:"restore"`
	Fuzzy   FuzzyConfig   `toml:"fuzzy"`
	Model   ModelConfig   `toml:"model"`
	Server  ServerConfig  `toml:"server"`
	CLI     CliConfig     `toml:"cli"`
	Redis   RedisConfig   `toml:"redis"`
}

// RestoreConfig has restoration options.
type RestoreConfig struct {
	Wildcard    string  `toml:"wildcard"`
	DefaultMode string  `toml:"default_mode"`
	Threshold   float64 `toml:"threshold"`
	// Seed pins the random choices. 0 seeds from the clock.
	Seed       int    `toml:"seed"`
	Vocabulary string `toml:"vocabulary"`
}

// FuzzyConfig holds fuzzy suggestion options.
type FuzzyConfig struct {
	MaxDistance      int        `toml:"max_distance"`
	TopK             int        `toml:"top_k"`
	Confusables      bool       `toml:"confusables"`
	ExtraConfusables [][]string `toml:"extra_confusables"`
}

// ModelConfig holds language model options.
type ModelConfig struct {
	SmoothingK float64 `toml:"smoothing_k"`
	Encoding   string  `toml:"encoding"`
	Corpus     string  `toml:"corpus"`
}

// ServerConfig has IPC server options.
type ServerConfig struct {
	MaxTextBytes int `toml:"max_text_bytes"`
	MaxLimit     int `toml:"max_limit"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit int  `toml:"default_limit"`
	Color        bool `toml:"color"`
}

// RedisConfig holds the optional vocabulary mirror.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

var validModes = map[string]bool{"best": true, "all": true, "context": true}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "wordmend")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	// Not conventional, fallback from ~/.config if not writable
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "wordmend")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/wordmend/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Restore: RestoreConfig{
			Wildcard:    "*",
			DefaultMode: "best",
			Threshold:   0.6,
		},
		Fuzzy: FuzzyConfig{
			MaxDistance: 1,
			TopK:        fuzzy.DefaultTopK,
			Confusables: true,
		},
		Model: ModelConfig{
			SmoothingK: 1.0,
			Encoding:   "utf-8",
		},
		Server: ServerConfig{
			MaxTextBytes: 1 << 20,
			MaxLimit:     64,
		},
		CLI: CliConfig{
			DefaultLimit: 10,
			Color:        true,
		},
		Redis: RedisConfig{
			Key: "wordmend:vocab",
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. Invalid values are reset to defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	config.Validate()
	return config, nil
}

// tryPartialParse keeps every value of the right type from a file the
// struct decoder rejected.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "restore"); ok {
		extractRestoreConfig(section, &config.Restore)
	}
	if section, ok := utils.ExtractSection(tempConfig, "fuzzy"); ok {
		extractFuzzyConfig(section, &config.Fuzzy)
	}
	if section, ok := utils.ExtractSection(tempConfig, "model"); ok {
		extractModelConfig(section, &config.Model)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	if section, ok := utils.ExtractSection(tempConfig, "redis"); ok {
		extractRedisConfig(section, &config.Redis)
	}
	config.Validate()
	return config, nil
}

func extractRestoreConfig(data map[string]any, restore *RestoreConfig) {
	if val, ok := utils.ExtractString(data, "wildcard"); ok {
		restore.Wildcard = val
	}
	if val, ok := utils.ExtractString(data, "default_mode"); ok {
		restore.DefaultMode = val
	}
	if val, ok := utils.ExtractFloat64(data, "threshold"); ok {
		restore.Threshold = val
	}
	if val, ok := utils.ExtractInt64(data, "seed"); ok {
		restore.Seed = val
	}
	if val, ok := utils.ExtractString(data, "vocabulary"); ok {
		restore.Vocabulary = val
	}
}

func extractFuzzyConfig(data map[string]any, fz *FuzzyConfig) {
	if val, ok := utils.ExtractInt64(data, "max_distance"); ok {
		fz.MaxDistance = val
	}
	if val, ok := utils.ExtractInt64(data, "top_k"); ok {
		fz.TopK = val
	}
	if val, ok := utils.ExtractBool(data, "confusables"); ok {
		fz.Confusables = val
	}
	if val, ok := utils.ExtractStringPairs(data, "extra_confusables"); ok {
		fz.ExtraConfusables = val
	}
}

func extractModelConfig(data map[string]any, model *ModelConfig) {
	if val, ok := utils.ExtractFloat64(data, "smoothing_k"); ok {
		model.SmoothingK = val
	}
	if val, ok := utils.ExtractString(data, "encoding"); ok {
		model.Encoding = val
	}
	if val, ok := utils.ExtractString(data, "corpus"); ok {
		model.Corpus = val
	}
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_text_bytes"); ok {
		server.MaxTextBytes = val
	}
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractBool(data, "color"); ok {
		cli.Color = val
	}
}

func extractRedisConfig(data map[string]any, redis *RedisConfig) {
	if val, ok := utils.ExtractString(data, "addr"); ok {
		redis.Addr = val
	}
	if val, ok := utils.ExtractString(data, "password"); ok {
		redis.Password = val
	}
	if val, ok := utils.ExtractInt64(data, "db"); ok {
		redis.DB = val
	}
	if val, ok := utils.ExtractString(data, "key"); ok {
		redis.Key = val
	}
}

// Validate resets out of range values to their defaults.
func (c *Config) Validate() {
	def := DefaultConfig()

	if utf8.RuneCountInString(c.Restore.Wildcard) != 1 {
		log.Warnf("wildcard %q must be a single character, using %q", c.Restore.Wildcard, def.Restore.Wildcard)
		c.Restore.Wildcard = def.Restore.Wildcard
	}
	if !validModes[c.Restore.DefaultMode] {
		log.Warnf("unknown default_mode %q, using %q", c.Restore.DefaultMode, def.Restore.DefaultMode)
		c.Restore.DefaultMode = def.Restore.DefaultMode
	}
	if c.Restore.Threshold < 0 || c.Restore.Threshold > 1 {
		log.Warnf("threshold %v outside [0, 1], using %v", c.Restore.Threshold, def.Restore.Threshold)
		c.Restore.Threshold = def.Restore.Threshold
	}
	if c.Fuzzy.MaxDistance < 0 {
		c.Fuzzy.MaxDistance = def.Fuzzy.MaxDistance
	}
	if c.Fuzzy.TopK < 1 {
		c.Fuzzy.TopK = def.Fuzzy.TopK
	}
	if c.Model.SmoothingK <= 0 {
		log.Warnf("smoothing_k must be positive, using %v", def.Model.SmoothingK)
		c.Model.SmoothingK = def.Model.SmoothingK
	}
	if !source.ValidEncoding(c.Model.Encoding) {
		log.Warnf("unsupported encoding %q, using %q", c.Model.Encoding, def.Model.Encoding)
		c.Model.Encoding = def.Model.Encoding
	}
	if c.Server.MaxTextBytes < 1 {
		c.Server.MaxTextBytes = def.Server.MaxTextBytes
	}
	if c.Server.MaxLimit < 1 {
		c.Server.MaxLimit = def.Server.MaxLimit
	}
	if c.CLI.DefaultLimit < 1 {
		c.CLI.DefaultLimit = def.CLI.DefaultLimit
	}
	if c.Redis.Key == "" {
		c.Redis.Key = def.Redis.Key
	}
}

// WildcardRune returns the configured wildcard.
func (c *Config) WildcardRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Restore.Wildcard)
	return r
}

// Relation builds the confusable relation: the defaults plus the extra
// pairs, or the empty relation when disabled.
func (f FuzzyConfig) Relation() *fuzzy.Confusables {
	if !f.Confusables {
		return fuzzy.NoConfusables()
	}
	pairs := fuzzy.DefaultPairs()
	for _, p := range f.ExtraConfusables {
		if len(p) != 2 {
			log.Warnf("ignoring confusable entry %v, want two strings", p)
			continue
		}
		pairs = append(pairs, [2]string{p[0], p[1]})
	}
	return fuzzy.NewConfusables(pairs...)
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(defaultPath)
	if err := utils.EnsureDir(configDir); err != nil {
		return err
	}
	config := DefaultConfig()
	return utils.SaveTOMLFile(config, defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes the interactive settings and saves to file
func (c *Config) Update(configPath string, threshold *float64, maxDistance *int, confusables *bool) error {
	if threshold != nil {
		c.Restore.Threshold = *threshold
	}
	if maxDistance != nil {
		c.Fuzzy.MaxDistance = *maxDistance
	}
	if confusables != nil {
		c.Fuzzy.Confusables = *confusables
	}
	c.Validate()
	return SaveConfig(c, configPath)
}
