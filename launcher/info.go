package launcher

import (
	"fmt"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const envPrefix = "LOBBY_PILOT"

type Info struct {
	ConfigPath        string        `mapstructure:"config"`
	AccountsPath      string        `mapstructure:"accounts"`
	ClientProcess     string        `mapstructure:"client-process"`
	LogLevel          int           `mapstructure:"log-level"`
	LogPath           string        `mapstructure:"log-path"`
	RemoteLogURL      string        `mapstructure:"remote-log-url"`
	ConsentLogSharing bool          `mapstructure:"consent-log-sharing"`
	GameStateAddr     string        `mapstructure:"game-state-addr"`
	CancelHotkey      string        `mapstructure:"cancel-hotkey"`
	SearchTimeout     time.Duration `mapstructure:"search-timeout"`
	MaxCycles         int           `mapstructure:"max-cycles"`
	PollInterval      time.Duration `mapstructure:"poll-interval"`
}

// BindFlags registers every setting on fs with its default.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(
		"config", "", "Optional YAML file with the same keys as the flags")
	fs.String(
		"accounts", "accounts.yaml", "YAML file listing the managed accounts and their client pids")
	fs.String(
		"client-process", "cs2.exe", "Executable name of the client processes")
	fs.Int(
		"log-level", 0, "Log level: -1 - Debug, 0 - Info, 1 - Warn, 2 - Error, 3/4 - Panic, 5 - Fatal")
	fs.String(
		"log-path",
		"",
		"Directory to the logs, otherwise will use working directory and add 'logs' to that path")
	fs.String(
		"remote-log-url", "", "Collector endpoint receiving shared logs")
	fs.Bool(
		"consent-log-sharing", false, "Consent log sharing")
	fs.String(
		"game-state-addr", "127.0.0.1:3111", "Listen address for client game state pushes, empty disables")
	fs.String(
		"cancel-hotkey", "ctrl+q", "Key combination that cancels the running action")
	fs.Duration(
		"search-timeout", 600*time.Second, "How long one search cycle waits for an accepted match")
	fs.Int(
		"max-cycles", 3, "Search cycles before giving up")
	fs.Duration(
		"poll-interval", time.Second, "Start button polling interval while searching")
}

// Load merges, from lowest to highest priority, the flag defaults, the
// config file, LOBBY_PILOT_* environment variables and the flags set on fs.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Info, error) {
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	info := &Info{}
	if err := v.Unmarshal(info); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return info, nil
}

func (c *Info) Validate() error {
	if c.AccountsPath == "" {
		return fmt.Errorf("--accounts is required and cannot be empty")
	}

	if c.ClientProcess == "" {
		return fmt.Errorf("--client-process is required and cannot be empty")
	}

	if c.MaxCycles < 1 {
		return fmt.Errorf("--max-cycles must be at least 1")
	}

	if c.SearchTimeout <= 0 {
		return fmt.Errorf("--search-timeout must be positive")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("--poll-interval must be positive")
	}

	if _, err := ParseHotkey(c.CancelHotkey); err != nil {
		return fmt.Errorf("--cancel-hotkey is invalid: %w", err)
	}

	if c.ConsentLogSharing && c.RemoteLogURL == "" {
		return fmt.Errorf("--remote-log-url is required when --consent-log-sharing is set")
	}

	return nil
}
