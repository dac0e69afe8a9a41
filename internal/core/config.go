package core

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MabzGamesStudio/StorageLogger/internal/backend/backup"
	"github.com/MabzGamesStudio/StorageLogger/internal/backend/blobstore"
	"github.com/MabzGamesStudio/StorageLogger/internal/backend/database"
	"github.com/MabzGamesStudio/StorageLogger/internal/backend/imagecodec"
)

const (
	defaultPort      = 8080
	defaultDataDir   = "data"
	defaultLogLevel  = "info"
	defaultSQLiteDSN = "storagelogger.db"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Ad struct {
	// Threshold is the number of saves between two ads.
	Threshold int `yaml:"threshold"`
}

type ServiceConfig struct {
	Port      int               `yaml:"port"`
	LogLevel  string            `yaml:"logLevel"`
	Database  Database          `yaml:"database"`
	BlobStore blobstore.Config  `yaml:"blobStore"`
	Image     imagecodec.Config `yaml:"image"`
	Backup    backup.Config     `yaml:"backup"`
	Ad        Ad                `yaml:"ad"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return &config, nil
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Database.Type == "" {
		c.Database.Type = database.TypeSQLite
	}
	if c.Database.Type == database.TypeSQLite && c.Database.ConnectionString == "" {
		c.Database.ConnectionString = defaultSQLiteDSN
	}
	if c.BlobStore.Type == "" {
		c.BlobStore.Type = blobstore.TypeFilesystem
	}
	if c.BlobStore.Type == blobstore.TypeFilesystem && c.BlobStore.Directory == "" {
		c.BlobStore.Directory = defaultDataDir
	}
	c.Image = c.Image.WithDefaults()
	c.Backup = c.Backup.WithDefaults()
	if c.Ad.Threshold == 0 {
		c.Ad.Threshold = DefaultAdThreshold
	}
}

func (c *ServiceConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be within 0..65535, got %d", c.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Database.Type {
	case database.TypeSQLite, database.TypeRedis:
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("database %s requires a connectionString", c.Database.Type)
	}
	switch c.BlobStore.Type {
	case blobstore.TypeFilesystem:
	case blobstore.TypeS3:
		if c.BlobStore.S3.Bucket == "" {
			return fmt.Errorf("blob store s3 requires a bucket")
		}
	default:
		return fmt.Errorf("unsupported blob store type %q", c.BlobStore.Type)
	}
	if err := c.Image.Validate(); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	if err := validateCommands(c.Image.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	if err := c.Backup.Compression.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if c.Ad.Threshold < 1 {
		return fmt.Errorf("ad threshold must be positive, got %d", c.Ad.Threshold)
	}
	return nil
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []imagecodec.CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		// Validate name is not empty
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		if !imagecodec.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command %q, available: %s", cmd.Name,
				strings.Join(imagecodec.DefaultRegistry.RegisteredNames(), ", "))
		}

		// Validate name is unique
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}

// ParseLogLevel maps debug, info, warn and error to their slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
