// Package config provides centralized configuration management for the MCP pod server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config holds the complete configuration for the application
type Config struct {
	// Server identity announced to MCP clients
	Server struct {
		Name    string
		Version string
	}

	// Log output settings. Logs always go to stderr since stdout carries the protocol.
	Log struct {
		Level  string
		Format string
	}

	// Tools selects the stock tools the server registers.
	Tools struct {
		Builtin []string

		System struct {
			Allowed []string
		}
	}

	// Memory system configuration, used by the memory tool
	Memory struct {
		// Embedder is "hash" (local, no network) or "openai"
		Embedder string

		// Dimensions of the embeddings stored in Qdrant
		Dimensions int

		OpenAI struct {
			APIKey string
			Model  string
		}

		// Vector store (Qdrant)
		Qdrant struct {
			Host       string
			Port       int
			APIKey     string
			UseTLS     bool
			Collection string
		}

		// Graph database (Neo4j)
		Neo4j struct {
			URL      string
			Username string
			Password string
			Database string
		}
	}
}

var (
	once   sync.Once
	config *Config
	err    error
)

// Load reads the configuration once from mcp-pod.yaml (if present) and
// MCP_POD_* environment variables.
func Load() (*Config, error) {
	once.Do(func() {
		v := viper.New()
		v.SetConfigName("mcp-pod")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if home, herr := os.UserHomeDir(); herr == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "mcp-pod"))
		}

		if rerr := v.ReadInConfig(); rerr != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(rerr, &notFound) {
				err = fmt.Errorf("failed to read config: %w", rerr)
				return
			}
		}

		config = FromViper(v)
	})

	return config, err
}

// FromViper maps a viper instance onto a Config, applying defaults and
// environment overrides.
func FromViper(v *viper.Viper) *Config {
	v.SetDefault("server.name", "mcp-pod")
	v.SetDefault("server.version", "1.0.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tools.builtin", []string{"echo", "uuid", "sleep"})
	v.SetDefault("tools.system.allowed", []string{})
	v.SetDefault("memory.embedder", "hash")
	v.SetDefault("memory.dimensions", 256)
	v.SetDefault("memory.openai.apikey", "")
	v.SetDefault("memory.openai.model", "text-embedding-3-small")
	v.SetDefault("memory.qdrant.host", "localhost")
	v.SetDefault("memory.qdrant.port", 6334)
	v.SetDefault("memory.qdrant.apikey", "")
	v.SetDefault("memory.qdrant.usetls", false)
	v.SetDefault("memory.qdrant.collection", "memories")
	v.SetDefault("memory.neo4j.url", "")
	v.SetDefault("memory.neo4j.username", "neo4j")
	v.SetDefault("memory.neo4j.password", "")
	v.SetDefault("memory.neo4j.database", "neo4j")

	v.SetEnvPrefix("MCP_POD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}

	cfg.Server.Name = v.GetString("server.name")
	cfg.Server.Version = v.GetString("server.version")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	cfg.Tools.Builtin = v.GetStringSlice("tools.builtin")
	cfg.Tools.System.Allowed = v.GetStringSlice("tools.system.allowed")

	cfg.Memory.Embedder = v.GetString("memory.embedder")
	cfg.Memory.Dimensions = v.GetInt("memory.dimensions")
	cfg.Memory.OpenAI.APIKey = v.GetString("memory.openai.apikey")
	cfg.Memory.OpenAI.Model = v.GetString("memory.openai.model")

	cfg.Memory.Qdrant.Host = v.GetString("memory.qdrant.host")
	cfg.Memory.Qdrant.Port = v.GetInt("memory.qdrant.port")
	cfg.Memory.Qdrant.APIKey = v.GetString("memory.qdrant.apikey")
	cfg.Memory.Qdrant.UseTLS = v.GetBool("memory.qdrant.usetls")
	cfg.Memory.Qdrant.Collection = v.GetString("memory.qdrant.collection")

	cfg.Memory.Neo4j.URL = v.GetString("memory.neo4j.url")
	cfg.Memory.Neo4j.Username = v.GetString("memory.neo4j.username")
	cfg.Memory.Neo4j.Password = v.GetString("memory.neo4j.password")
	cfg.Memory.Neo4j.Database = v.GetString("memory.neo4j.database")

	return cfg
}

var (
	formats   = []string{"text", "json", "logfmt"}
	embedders = []string{"hash", "openai"}
)

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Name == "" {
		problems = append(problems, "server name is empty")
	}

	if c.Server.Version == "" {
		problems = append(problems, "server version is empty")
	}

	if _, perr := log.ParseLevel(c.Log.Level); perr != nil {
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if !slices.Contains(formats, c.Log.Format) {
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if slices.Contains(c.Tools.Builtin, "system") && len(c.Tools.System.Allowed) == 0 {
		problems = append(problems, "system tool enabled without allowed commands")
	}

	if slices.Contains(c.Tools.Builtin, "memory") {
		if c.Memory.Dimensions <= 0 {
			problems = append(problems, "memory dimensions must be positive")
		}

		if !slices.Contains(embedders, c.Memory.Embedder) {
			problems = append(problems, fmt.Sprintf("unknown memory embedder %q", c.Memory.Embedder))
		}

		if c.Memory.Qdrant.Host == "" && c.Memory.Neo4j.URL == "" {
			problems = append(problems, "memory tool enabled without Qdrant or Neo4j configured")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %v", problems)
	}

	return nil
}
