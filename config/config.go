package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"tablature/logger"

	"github.com/spf13/viper"
)

const (
	DefaultServerPort     = "8790"
	DefaultResultsPerPage = 15
	DefaultColumnWidth    = "initial"
	DefaultLocale         = "en-US"
)

type DefaultPaths struct {
	ConfigDir     string
	LogPathApp    string
	LogPathAccess string
	DBPath        string
	LogLevel      string
}

// ColumnDefinition describes one displayed column of a table.
type ColumnDefinition struct {
	Name        string         `mapstructure:"name"`
	Label       string         `mapstructure:"label"`
	Width       string         `mapstructure:"width"`
	Ordering    []string       `mapstructure:"ordering"`
	Filter      []FilterChoice `mapstructure:"filter"`
	FilterQuery string         `mapstructure:"filter_query"`
	// Sortable defaults to true; columns are always real fields of the source.
	Sortable      *bool `mapstructure:"sortable"`
	DisplayLabels bool  `mapstructure:"display_labels"`
}

// FilterChoice is one static filter option as written in the config file.
type FilterChoice struct {
	Value string `mapstructure:"value"`
	Label string `mapstructure:"label"`
}

// TableDefinition binds a SQLite table (or view) to the widget.
type TableDefinition struct {
	Name                     string             `mapstructure:"name"`
	Title                    string             `mapstructure:"title"`
	Source                   string             `mapstructure:"source"`
	Columns                  []ColumnDefinition `mapstructure:"columns"`
	Search                   []string           `mapstructure:"search"`
	ResultsPerPage           int                `mapstructure:"results_per_page"`
	AccessControlAllowOrigin string             `mapstructure:"access_control_allow_origin"`
	CellPolicy               string             `mapstructure:"cell_policy"`
}

type Configuration struct {
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Server struct {
		Port          string   `mapstructure:"port"`
		LogPath       string   `mapstructure:"log_path"`
		AccessLogPath string   `mapstructure:"access_log_path"`
		StaticDir     string   `mapstructure:"static_dir"`
		ScriptURLs    []string `mapstructure:"script_urls"`
	} `mapstructure:"server"`
	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
	I18n struct {
		DefaultLocale string `mapstructure:"default_locale"`
	} `mapstructure:"i18n"`
	Widget struct {
		Selector  string `mapstructure:"selector"`
		ReadyHook string `mapstructure:"ready_hook"`
	} `mapstructure:"widget"`
	Tables []TableDefinition `mapstructure:"tables"`
}

var AppConfig Configuration

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrInvalidTable = errors.New("invalid table definition")
)

func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// ExpandTilde is exported for the cmd package, which resolves the --dbpath flag itself.
func ExpandTilde(path string) (string, error) {
	return expandTilde(path)
}

func GetDefaultConfigPaths() DefaultPaths {
	var paths DefaultPaths
	userConfigDirBase, err := os.UserConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not get user config dir: %v. Using current directory.\n", err)
		userConfigDirBase = "."
	}

	userConfigDir, err := expandTilde(userConfigDirBase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in user config dir '%s': %v. Using potentially literal path.\n", userConfigDirBase, err)
		userConfigDir = userConfigDirBase
	}

	paths.ConfigDir = filepath.Join(userConfigDir, "tablature")
	logDir := filepath.Join(paths.ConfigDir, "logs")

	paths.LogPathApp = filepath.Join(logDir, "app.log")
	paths.LogPathAccess = filepath.Join(logDir, "access.log")
	paths.DBPath = filepath.Join(paths.ConfigDir, "tablature.db")
	paths.LogLevel = "INFO"
	return paths
}

func setDefaults(v *viper.Viper, defaults DefaultPaths) {
	v.SetDefault("database.path", defaults.DBPath)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.log_path", defaults.LogPathApp)
	v.SetDefault("server.access_log_path", defaults.LogPathAccess)
	v.SetDefault("server.static_dir", "./static")
	v.SetDefault("server.script_urls", []string{"/static/jquery.min.js", "/static/tablature/table.js"})
	v.SetDefault("logging.level", defaults.LogLevel)
	v.SetDefault("i18n.default_locale", DefaultLocale)
	v.SetDefault("widget.selector", "#table")
	v.SetDefault("widget.ready_hook", "jquery")
}

// Load reads the configuration without touching loggers or the filesystem.
// Init wraps it for the CLI; tests call it directly.
func Load(cfgFile string) (Configuration, string, error) {
	v := viper.New()
	defaults := GetDefaultConfigPaths()
	setDefaults(v, defaults)

	if cfgFile != "" {
		expandedCfgFile, err := expandTilde(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in config file path '%s': %v. Trying original path.\n", cfgFile, err)
			expandedCfgFile = cfgFile
		}
		v.SetConfigFile(expandedCfgFile)
		v.SetConfigType("yaml")
	} else {
		v.AddConfigPath(defaults.ConfigDir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("TABLATURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	configUsedMsg := "Using default/environment configuration."
	readErr := v.ReadInConfig()
	if readErr == nil {
		configUsedMsg = fmt.Sprintf("Using config file: %s", v.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) || cfgFile != "" {
			return Configuration{}, "", fmt.Errorf("reading config file %s: %w", cfgFile, readErr)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return Configuration{}, "", fmt.Errorf("unable to decode config into struct: %w", err)
	}

	var err error
	if cfg.Database.Path, err = expandTilde(cfg.Database.Path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in database.path '%s': %v.\n", cfg.Database.Path, err)
	}
	if err := cfg.normalizeTables(); err != nil {
		return Configuration{}, "", err
	}
	return cfg, configUsedMsg, nil
}

func (c *Configuration) normalizeTables() error {
	seen := make(map[string]bool, len(c.Tables))
	for i := range c.Tables {
		t := &c.Tables[i]
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return fmt.Errorf("%w: table #%d has no name", ErrInvalidTable, i+1)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: table %q defined twice", ErrInvalidTable, t.Name)
		}
		seen[t.Name] = true
		if t.Source == "" {
			t.Source = t.Name
		}
		if t.Title == "" {
			t.Title = t.Name
		}
		if t.ResultsPerPage <= 0 {
			t.ResultsPerPage = DefaultResultsPerPage
		}
		for j, col := range t.Columns {
			if strings.TrimSpace(col.Name) == "" {
				return fmt.Errorf("%w: table %q column #%d has no name", ErrInvalidTable, t.Name, j+1)
			}
		}
	}
	return nil
}

// Table looks a definition up by name.
func (c *Configuration) Table(name string) (TableDefinition, error) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, nil
		}
	}
	return TableDefinition{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

func Init(cfgFile string, flagAppLogPath, flagAccessLogPath, flagLogLevel string) error {
	cfg, configUsedMsg, err := Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: %v\n", err)
		return err
	}
	AppConfig = cfg

	if flagAppLogPath != "" {
		if expanded, err := expandTilde(flagAppLogPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in --app-log path '%s': %v. Using original path.\n", flagAppLogPath, err)
			AppConfig.Server.LogPath = flagAppLogPath
		} else {
			AppConfig.Server.LogPath = expanded
		}
	}
	if flagAccessLogPath != "" {
		if expanded, err := expandTilde(flagAccessLogPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in --access-log path '%s': %v. Using original path.\n", flagAccessLogPath, err)
			AppConfig.Server.AccessLogPath = flagAccessLogPath
		} else {
			AppConfig.Server.AccessLogPath = expanded
		}
	}
	if flagLogLevel != "" {
		AppConfig.Logging.Level = strings.ToUpper(flagLogLevel)
	}

	if err := logger.InitGlobalLoggers(AppConfig.Server.LogPath, AppConfig.Server.AccessLogPath, AppConfig.Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to initialize global loggers with final config: %v\n", err)
		return fmt.Errorf("failed to initialize global loggers with final config: %w", err)
	}

	logger.Info(configUsedMsg)
	if flagAppLogPath != "" || flagAccessLogPath != "" || flagLogLevel != "" {
		logger.Info("Log path/level flags may have overridden config file/defaults.")
	}
	if len(AppConfig.Tables) == 0 {
		logger.Warn("No tables are defined in the configuration; the server will only answer health checks.")
	} else {
		logger.Info("Loaded %d table definition(s).", len(AppConfig.Tables))
	}
	logger.Debug("Final AppConfig Initialized: %+v", AppConfig)
	return nil
}
