package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultProvider         = "gemini"
	DefaultChatModel        = "gemini-3-flash-preview"
	DefaultPrimaryModel     = "gemini-3-pro-preview"
	DefaultFallbackModel    = "gemini-3-flash-preview"
	DefaultAnalysisModel    = "gemini-3-flash-preview"
	DefaultThinkingBudget   = 16384
	DefaultMaxTokens        = 8192
	DefaultChatTimeout      = 60
	DefaultAdvisorTimeout   = 180
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 18790
	DefaultAPIPort          = 18791
	DefaultBufSize          = 100
	DefaultExtraStudents    = 65
	DefaultExtraTeachers    = 25
	DefaultInsightsSchedule = "0 0 7 * * *"
	DefaultLogLevel         = "info"
	envPrefix               = "EDUSPHERE"
	configDirName           = ".edusphere"
	configFileName          = "config.json"
	ProviderGemini          = "gemini"
	ProviderAnthropic       = "anthropic"
	ProviderOpenAI          = "openai"
)

type Config struct {
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`
	Chat     ChatConfig     `json:"chat" mapstructure:"chat"`
	Advisor  AdvisorConfig  `json:"advisor" mapstructure:"advisor"`
	Gateway  GatewayConfig  `json:"gateway" mapstructure:"gateway"`
	API      APIConfig      `json:"api" mapstructure:"api"`
	Channels ChannelsConfig `json:"channels" mapstructure:"channels"`
	Data     DataConfig     `json:"data" mapstructure:"data"`
	Insights InsightsConfig `json:"insights" mapstructure:"insights"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty" mapstructure:"type"` // "gemini" (default), "anthropic" or "openai"
	APIKey  string `json:"apiKey" mapstructure:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty" mapstructure:"baseUrl"`
}

type ChatConfig struct {
	Model          string `json:"model" mapstructure:"model"`
	MaxTokens      int    `json:"maxTokens" mapstructure:"maxTokens"`
	TimeoutSeconds int    `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	ParallelTools  bool   `json:"parallelTools" mapstructure:"parallelTools"`
}

type AdvisorConfig struct {
	PrimaryModel   string `json:"primaryModel" mapstructure:"primaryModel"`
	FallbackModel  string `json:"fallbackModel" mapstructure:"fallbackModel"`
	AnalysisModel  string `json:"analysisModel" mapstructure:"analysisModel"`
	ThinkingBudget int    `json:"thinkingBudget" mapstructure:"thinkingBudget"`
	TimeoutSeconds int    `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
}

type GatewayConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

type APIConfig struct {
	Enabled        bool `json:"enabled" mapstructure:"enabled"`
	Port           int  `json:"port" mapstructure:"port"`
	Debug          bool `json:"debug" mapstructure:"debug"`
	DisableReqLogs bool `json:"disableReqLogs" mapstructure:"disableReqLogs"`
}

type ChannelsConfig struct {
	WebUI    WebUIConfig    `json:"webui" mapstructure:"webui"`
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`
}

type WebUIConfig struct {
	Enabled   bool     `json:"enabled" mapstructure:"enabled"`
	AllowFrom []string `json:"allowFrom" mapstructure:"allowFrom"`
}

type TelegramConfig struct {
	Enabled      bool     `json:"enabled" mapstructure:"enabled"`
	Token        string   `json:"token" mapstructure:"token"`
	AllowFrom    []string `json:"allowFrom" mapstructure:"allowFrom"`
	Proxy        string   `json:"proxy,omitempty" mapstructure:"proxy"`
	DashboardURL string   `json:"dashboardUrl,omitempty" mapstructure:"dashboardUrl"`
}

type DataConfig struct {
	SeedFile      string `json:"seedFile,omitempty" mapstructure:"seedFile"`
	ExtraStudents int    `json:"extraStudents" mapstructure:"extraStudents"`
	ExtraTeachers int    `json:"extraTeachers" mapstructure:"extraTeachers"`
	RandomSeed    int64  `json:"randomSeed,omitempty" mapstructure:"randomSeed"`
}

type InsightsConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Schedule   string `json:"schedule" mapstructure:"schedule"`
	RunOnStart bool   `json:"runOnStart" mapstructure:"runOnStart"`
}

type LogConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	Development bool   `json:"development" mapstructure:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{Type: DefaultProvider},
		Chat: ChatConfig{
			Model:          DefaultChatModel,
			MaxTokens:      DefaultMaxTokens,
			TimeoutSeconds: DefaultChatTimeout,
			ParallelTools:  true,
		},
		Advisor: AdvisorConfig{
			PrimaryModel:   DefaultPrimaryModel,
			FallbackModel:  DefaultFallbackModel,
			AnalysisModel:  DefaultAnalysisModel,
			ThinkingBudget: DefaultThinkingBudget,
			TimeoutSeconds: DefaultAdvisorTimeout,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		API: APIConfig{
			Enabled: true,
			Port:    DefaultAPIPort,
		},
		Channels: ChannelsConfig{
			WebUI: WebUIConfig{Enabled: true},
		},
		Data: DataConfig{
			ExtraStudents: DefaultExtraStudents,
			ExtraTeachers: DefaultExtraTeachers,
		},
		Insights: InsightsConfig{
			Enabled:  false,
			Schedule: DefaultInsightsSchedule,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, configDirName)
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), configFileName)
}

// LoadConfig reads ~/.edusphere/config.json (if present) and applies
// EDUSPHERE_* environment overrides on top of the defaults.
func LoadConfig() (*Config, error) {
	v := newViper(DefaultConfig())

	if _, err := os.Stat(ConfigPath()); err == nil {
		v.SetConfigFile(ConfigPath())
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyKeyFallbacks(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// every key needs a default so AutomaticEnv can see it during Unmarshal
	v.SetDefault("provider.type", defaults.Provider.Type)
	v.SetDefault("provider.apiKey", defaults.Provider.APIKey)
	v.SetDefault("provider.baseUrl", defaults.Provider.BaseURL)

	v.SetDefault("chat.model", defaults.Chat.Model)
	v.SetDefault("chat.maxTokens", defaults.Chat.MaxTokens)
	v.SetDefault("chat.timeoutSeconds", defaults.Chat.TimeoutSeconds)
	v.SetDefault("chat.parallelTools", defaults.Chat.ParallelTools)

	v.SetDefault("advisor.primaryModel", defaults.Advisor.PrimaryModel)
	v.SetDefault("advisor.fallbackModel", defaults.Advisor.FallbackModel)
	v.SetDefault("advisor.analysisModel", defaults.Advisor.AnalysisModel)
	v.SetDefault("advisor.thinkingBudget", defaults.Advisor.ThinkingBudget)
	v.SetDefault("advisor.timeoutSeconds", defaults.Advisor.TimeoutSeconds)

	v.SetDefault("gateway.host", defaults.Gateway.Host)
	v.SetDefault("gateway.port", defaults.Gateway.Port)

	v.SetDefault("api.enabled", defaults.API.Enabled)
	v.SetDefault("api.port", defaults.API.Port)
	v.SetDefault("api.debug", defaults.API.Debug)
	v.SetDefault("api.disableReqLogs", defaults.API.DisableReqLogs)

	v.SetDefault("channels.webui.enabled", defaults.Channels.WebUI.Enabled)
	v.SetDefault("channels.webui.allowFrom", defaults.Channels.WebUI.AllowFrom)
	v.SetDefault("channels.telegram.enabled", defaults.Channels.Telegram.Enabled)
	v.SetDefault("channels.telegram.token", defaults.Channels.Telegram.Token)
	v.SetDefault("channels.telegram.allowFrom", defaults.Channels.Telegram.AllowFrom)
	v.SetDefault("channels.telegram.proxy", defaults.Channels.Telegram.Proxy)
	v.SetDefault("channels.telegram.dashboardUrl", defaults.Channels.Telegram.DashboardURL)

	v.SetDefault("data.seedFile", defaults.Data.SeedFile)
	v.SetDefault("data.extraStudents", defaults.Data.ExtraStudents)
	v.SetDefault("data.extraTeachers", defaults.Data.ExtraTeachers)
	v.SetDefault("data.randomSeed", defaults.Data.RandomSeed)

	v.SetDefault("insights.enabled", defaults.Insights.Enabled)
	v.SetDefault("insights.schedule", defaults.Insights.Schedule)
	v.SetDefault("insights.runOnStart", defaults.Insights.RunOnStart)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.development", defaults.Log.Development)
	return v
}

func applyKeyFallbacks(cfg *Config) {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"} {
		if key := os.Getenv(name); key != "" && cfg.Provider.APIKey == "" {
			cfg.Provider.APIKey = key
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		cfg.Provider.Type = ProviderAnthropic
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		cfg.Provider.Type = ProviderOpenAI
	}
	if token := os.Getenv("EDUSPHERE_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	cfg.Provider.Type = strings.ToLower(strings.TrimSpace(cfg.Provider.Type))
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = defaults.Provider.Type
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = defaults.Chat.Model
	}
	if cfg.Chat.TimeoutSeconds <= 0 {
		cfg.Chat.TimeoutSeconds = defaults.Chat.TimeoutSeconds
	}
	if cfg.Advisor.PrimaryModel == "" {
		cfg.Advisor.PrimaryModel = defaults.Advisor.PrimaryModel
	}
	if cfg.Advisor.FallbackModel == "" {
		cfg.Advisor.FallbackModel = defaults.Advisor.FallbackModel
	}
	if cfg.Advisor.AnalysisModel == "" {
		cfg.Advisor.AnalysisModel = cfg.Advisor.FallbackModel
	}
	if cfg.Advisor.TimeoutSeconds <= 0 {
		cfg.Advisor.TimeoutSeconds = defaults.Advisor.TimeoutSeconds
	}
	if cfg.Insights.Schedule == "" {
		cfg.Insights.Schedule = defaults.Insights.Schedule
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
