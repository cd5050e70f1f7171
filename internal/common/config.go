package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Confluence ConfluenceConfig `toml:"confluence"`
	Jira       JiraConfig       `toml:"jira"`
	Sync       SyncConfig       `toml:"sync"`
	Storage    StorageConfig    `toml:"storage"`
	Logging    LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
	Port        int    `toml:"port"`
}

type ConfluenceConfig struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	APIToken string `toml:"api_token"`
	Timeout  int    `toml:"timeout"`
}

type JiraConfig struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	APIToken string `toml:"api_token"`
	Timeout  int    `toml:"timeout"`

	// Issue creation parameters
	IssueTypeID     string `toml:"issue_type_id"`
	ParentLinkField string `toml:"parent_link_field"`

	// Jira application link identity as configured in Confluence,
	// embedded in every generated issue macro.
	ServerName string `toml:"server_name"`
	ServerID   string `toml:"server_id"`
}

type SyncConfig struct {
	DefaultDaysToDueDate int `toml:"default_days_to_due_date"`
	MaxRetries           int `toml:"max_retries"`
}

type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	defaultDBPath := filepath.Join(execDir, "data", execName+".db")

	return &Config{
		Server: ServerConfig{
			Name:        execName,
			Environment: "development",
			Port:        8080,
		},
		Confluence: ConfluenceConfig{
			Timeout: 30,
		},
		Jira: JiraConfig{
			Timeout:         30,
			IssueTypeID:     "10002",
			ParentLinkField: "customfield_10003",
			ServerName:      "Jira",
		},
		Sync: SyncConfig{
			DefaultDaysToDueDate: 7,
			MaxRetries:           3,
		},
		Storage: StorageConfig{
			DatabasePath: defaultDBPath,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		// Auto-detect config file
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		execName := filepath.Base(execPath)
		execName = execName[:len(execName)-len(filepath.Ext(execName))]

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			return config, nil
		}
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if url := os.Getenv("CONFLUENCE_BASE_URL"); url != "" {
		config.Confluence.BaseURL = url
	}
	if user := os.Getenv("CONFLUENCE_USERNAME"); user != "" {
		config.Confluence.Username = user
	}
	if token := os.Getenv("CONFLUENCE_API_TOKEN"); token != "" {
		config.Confluence.APIToken = token
	}

	if url := os.Getenv("JIRA_BASE_URL"); url != "" {
		config.Jira.BaseURL = url
	}
	if user := os.Getenv("JIRA_USERNAME"); user != "" {
		config.Jira.Username = user
	}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		config.Jira.APIToken = token
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Server.Port = portNum
		}
	}
}

func (c *Config) Validate() error {
	if c.Confluence.BaseURL == "" {
		return fmt.Errorf("confluence base_url is required")
	}
	if c.Jira.BaseURL == "" {
		return fmt.Errorf("jira base_url is required")
	}
	if c.Jira.ParentLinkField == "" {
		return fmt.Errorf("jira parent_link_field is required")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path is required")
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Sync.DefaultDaysToDueDate <= 0 {
		c.Sync.DefaultDaysToDueDate = 7
	}
	if c.Sync.MaxRetries < 0 {
		c.Sync.MaxRetries = 3
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}

// Redacted returns a copy safe for display, with credentials blanked.
func (c *Config) Redacted() *Config {
	redacted := *c
	if redacted.Confluence.APIToken != "" {
		redacted.Confluence.APIToken = "***"
	}
	if redacted.Jira.APIToken != "" {
		redacted.Jira.APIToken = "***"
	}
	return &redacted
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
