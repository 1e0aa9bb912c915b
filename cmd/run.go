package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/scomax/contact-validator/internal/ai/gemini"
	"github.com/scomax/contact-validator/internal/contacts"
	"github.com/scomax/contact-validator/internal/linkedin"
	"github.com/scomax/contact-validator/internal/logger"
	"github.com/scomax/contact-validator/internal/runner"
	"github.com/scomax/contact-validator/internal/search"
	"github.com/scomax/contact-validator/internal/secrets"
	"github.com/scomax/contact-validator/internal/validation"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes           = "Yes"
	PromptNo            = "No"
	PromptReportPending = "Report pending contacts"
)

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo, PromptReportPending},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate pending contacts from the contact table",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before processing pending contacts")
	runCmd.Flags().StringP("contacts", "c", "", "path to the contacts csv file. Default is contacts.csv.")

	viper.BindPFlag("contacts", runCmd.Flags().Lookup("contacts"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the contact-validator", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	records, err := contacts.Load(config.Contacts)
	if err != nil {
		logger.Fatal("loading contacts", zap.Error(err), zap.String("path", config.Contacts))
	}

	pending := contacts.Pending(records)
	logger.Info("contacts loaded",
		zap.String("path", config.Contacts),
		zap.Int("total", len(records)),
		zap.Int("pending", len(pending)),
	)

	if len(pending) == 0 {
		logger.Info("exiting", zap.String("reason", "no pending contacts"))
		return
	}

	for cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
		if action == PromptReportPending {
			reportPending(pending, logger)
			continue
		}
		break
	}

	session, err := newProfileSession(ctx, config.LinkedIn.CookieFile, logger)
	if err != nil {
		logger.Fatal("creating linkedin session",
			zap.Error(err),
			zap.String("hint", "log in with a supported browser or point linkedin.cookie-file at an exported cookie file"),
		)
	}

	finder := newFinder(config.Search, logger)

	var verifier validation.Verifier
	if config.AI.Enabled {
		v, err := newVerifier(ctx, config.AI, logger)
		if err != nil {
			logger.Warn("skipping ai verification", zap.Error(err))
		} else {
			verifier = v
		}
	}

	loop := validation.NewLoop(finder, session, verifier, validation.Config{
		MaxCandidates:      config.Matching.MaxCandidates,
		SearchThreshold:    config.Matching.SearchThreshold,
		MatchThreshold:     config.Matching.CompanyThreshold,
		EarlyExitThreshold: config.Matching.EarlyExitThreshold,
	}, logger)

	sessions := []runner.SessionCheck{
		{
			Name:  "linkedin",
			Check: session.Healthcheck,
			Recreate: func(ctx context.Context) error {
				return session.recreate(ctx, config.LinkedIn.CookieFile, logger)
			},
		},
		{
			Name:  "search",
			Check: finder.Healthcheck,
		},
	}

	checkpoint := func(recs []*contacts.Record) error {
		return contacts.Save(config.Contacts, recs)
	}

	r := runner.New(loop, checkpoint, sessions, runner.Config{
		BatchSize:   config.Batch.Size,
		BatchDelay:  config.Batch.Delay,
		RecordDelay: config.Batch.RecordDelay,
	}, logger)

	runErr := r.Run(ctx, records)

	if err := session.saveCookies(); err != nil {
		logger.Warn("saving linkedin cookies", zap.Error(err))
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Info("interrupted, progress checkpointed", zap.String("path", config.Contacts))
			return
		}
		logger.Fatal("processing contacts", zap.Error(runErr))
	}

	reportResults(records, logger)
}

func reportPending(pending []*contacts.Record, logger *zap.Logger) {
	names := make([]string, 0, len(pending))
	for _, rec := range pending {
		names = append(names, fmt.Sprintf("%s / %s", rec.FullName(), rec.Account))
	}

	pretty, _ := json.MarshalIndent(names, "", "  ")
	logger.Info(string(pretty), zap.Int("pending count", len(pending)))
}

func reportResults(records []*contacts.Record, logger *zap.Logger) {
	var valid, invalid, pending int
	for _, rec := range records {
		switch {
		case !rec.Valid.IsSet():
			pending++
		case rec.Valid.True():
			valid++
		default:
			invalid++
		}
	}

	logger.Info("run complete",
		zap.Int("valid", valid),
		zap.Int("invalid", invalid),
		zap.Int("pending", pending),
	)
}

// newFinder builds the provider chain: scraped results first, the paid API
// as fallback when a key is configured.
func newFinder(cfg *SearchConfig, logger *zap.Logger) *search.Finder {
	cache := newSearchCache(cfg, logger)
	client := &http.Client{Timeout: cfg.Timeout}

	providers := []search.Provider{search.NewBing(client, cache, logger)}

	braveKey, err := secrets.LoadOptional(secrets.Source{
		Name:  "brave api key",
		Value: cfg.Brave.APIKey,
		Env:   "BRAVE_API_KEY",
		File:  cfg.Brave.APIKeyFile,
	})
	if err != nil {
		logger.Fatal("loading brave api key", zap.Error(err))
	}
	if braveKey == "" {
		logger.Info("brave search disabled",
			zap.String("hint", "set BRAVE_API_KEY or search.brave.api-key-file to enable the fallback provider"),
		)
	} else {
		providers = append(providers, search.NewBrave(client, braveKey, cache, logger))
	}

	return search.NewFinder(logger, providers...)
}

func newSearchCache(cfg *SearchConfig, logger *zap.Logger) *search.Cache {
	dir := cfg.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			logger.Warn("search cache disabled", zap.Error(err))
			return nil
		}
		dir = filepath.Join(base, app)
	}

	cache, err := search.NewCache(cfg.CacheTTL, dir)
	if err != nil {
		logger.Warn("search cache disabled", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	return cache
}

func newVerifier(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Verifier, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		Env:  "GEMINI_API_KEY",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	return gemini.NewVerifier(generator, logger, cfg.MinConfidence, cfg.Gemini.MaxLogLength), nil
}

// profileSession wraps the linkedin client so the runner can swap the
// session under the running loop when a health check forces a rebuild.
type profileSession struct {
	mu     sync.Mutex
	client *linkedin.Client
}

func newProfileSession(ctx context.Context, cookieFile string, logger *zap.Logger) (*profileSession, error) {
	client, err := linkedin.New(ctx, cookieFile, logger)
	if err != nil {
		return nil, err
	}
	return &profileSession{client: client}, nil
}

func (s *profileSession) get() *linkedin.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *profileSession) Positions(ctx context.Context, profileURL string) ([]linkedin.Position, error) {
	return s.get().Positions(ctx, profileURL)
}

func (s *profileSession) Healthcheck(ctx context.Context) error {
	return s.get().Healthcheck(ctx)
}

func (s *profileSession) recreate(ctx context.Context, cookieFile string, logger *zap.Logger) error {
	client, err := linkedin.New(ctx, cookieFile, logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return nil
}

func (s *profileSession) saveCookies() error {
	return s.get().SaveCookies()
}
