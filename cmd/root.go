package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "contact-validator"
)

type Config struct {
	Contacts string          `mapstructure:"contacts"`
	Matching *MatchingConfig `mapstructure:"matching"`
	Batch    *BatchConfig    `mapstructure:"batch"`
	Search   *SearchConfig   `mapstructure:"search"`
	LinkedIn *LinkedInConfig `mapstructure:"linkedin"`
	AI       *AIConfig       `mapstructure:"ai"`
}

type MatchingConfig struct {
	MaxCandidates      int     `mapstructure:"max-candidates"`
	SearchThreshold    float64 `mapstructure:"search-threshold"`
	CompanyThreshold   float64 `mapstructure:"company-threshold"`
	EarlyExitThreshold float64 `mapstructure:"early-exit-threshold"`
}

type BatchConfig struct {
	Size        int           `mapstructure:"size"`
	Delay       time.Duration `mapstructure:"delay"`
	RecordDelay time.Duration `mapstructure:"record-delay"`
}

type SearchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache-ttl"`
	CacheDir string        `mapstructure:"cache-dir"`
	Brave    *BraveConfig  `mapstructure:"brave"`
}

type BraveConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type LinkedInConfig struct {
	CookieFile string `mapstructure:"cookie-file"`
}

type AIConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Provider      string        `mapstructure:"provider"`
	MinConfidence float64       `mapstructure:"min-confidence"`
	Gemini        *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "contact-validator checks whether contacts still work at their listed company",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("search.brave.api-key-file", "BRAVE_API_KEY_FILE"); err != nil {
		log.Fatalf("binding BRAVE_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is contact-validator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Every knob has a default, so a missing config file is not fatal.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}
	applyDefaults(config)

	return config, nil
}

// applyDefaults fills every unset knob so a run works with an empty or
// missing config file.
func applyDefaults(config *Config) {
	if config.Contacts == "" {
		config.Contacts = "contacts.csv"
	}

	if config.Matching == nil {
		config.Matching = &MatchingConfig{}
	}
	if config.Matching.MaxCandidates <= 0 {
		config.Matching.MaxCandidates = 3
	}
	if config.Matching.SearchThreshold <= 0 {
		config.Matching.SearchThreshold = 0.6
	}
	if config.Matching.CompanyThreshold <= 0 {
		config.Matching.CompanyThreshold = 75
	}
	if config.Matching.EarlyExitThreshold <= 0 {
		config.Matching.EarlyExitThreshold = 85
	}

	if config.Batch == nil {
		config.Batch = &BatchConfig{}
	}
	if config.Batch.Size <= 0 {
		config.Batch.Size = 5
	}
	if config.Batch.Delay <= 0 {
		config.Batch.Delay = 30 * time.Second
	}
	if config.Batch.RecordDelay <= 0 {
		config.Batch.RecordDelay = 2 * time.Second
	}

	if config.Search == nil {
		config.Search = &SearchConfig{}
	}
	if config.Search.Timeout <= 0 {
		config.Search.Timeout = 20 * time.Second
	}
	if config.Search.CacheTTL <= 0 {
		config.Search.CacheTTL = 24 * time.Hour
	}
	if config.Search.Brave == nil {
		config.Search.Brave = &BraveConfig{}
	}

	if config.LinkedIn == nil {
		config.LinkedIn = &LinkedInConfig{}
	}
	if config.LinkedIn.CookieFile == "" {
		config.LinkedIn.CookieFile = "linkedin_cookies.json"
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.MinConfidence <= 0 {
		config.AI.MinConfidence = 0.7
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
}
