// Command SehaCoach runs the coaching server: the HTTP API, the dialogue service behind smart
// mode and, when configured, the WhatsApp and Twilio messaging bridges.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/SehaCoach/internal/api"
	"github.com/BTreeMap/SehaCoach/internal/coach"
	"github.com/BTreeMap/SehaCoach/internal/dialogue"
	"github.com/BTreeMap/SehaCoach/internal/flow"
	"github.com/BTreeMap/SehaCoach/internal/genai"
	"github.com/BTreeMap/SehaCoach/internal/lockfile"
	"github.com/BTreeMap/SehaCoach/internal/mealscan"
	"github.com/BTreeMap/SehaCoach/internal/messaging"
	"github.com/BTreeMap/SehaCoach/internal/store"
	"github.com/BTreeMap/SehaCoach/internal/twiliowhatsapp"
	"github.com/BTreeMap/SehaCoach/internal/util"
	"github.com/BTreeMap/SehaCoach/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for SehaCoach state data
	DefaultStateDir = "/var/lib/sehacoach"
	// DefaultAppDBFileName is the default SQLite database for profiles and history
	DefaultAppDBFileName = "sehacoach.db"
	// DefaultWhatsAppDBFileName is the default SQLite database for the whatsmeow device store
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	if err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], &config); err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping SehaCoach")
	if err := run(ctx, config); err != nil {
		var lockErr *lockfile.LockError
		if errors.As(err, &lockErr) {
			fmt.Fprintln(os.Stderr, lockErr.Error())
		}
		slog.Error("SehaCoach failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("SehaCoach exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	DatabaseURL      string
	RedisURL         string
	OpenAIKey        string
	GenAIDebug       bool
	APIAddr          string
	DialogueURL      string
	DialogueTimeout  time.Duration
	WhatsAppEnabled  bool
	WhatsAppDSN      string
	QROutput         string
	NumericCode      bool
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioWebhookURL string
	Seed             uint64
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:         util.GetEnv("SEHACOACH_STATE_DIR", DefaultStateDir),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		GenAIDebug:       util.ParseBoolEnv("GENAI_DEBUG", false),
		APIAddr:          util.GetEnv("API_ADDR", api.DefaultAddr),
		DialogueURL:      os.Getenv("DIALOGUE_URL"),
		DialogueTimeout:  util.ParseDurationEnv("DIALOGUE_TIMEOUT", dialogue.DefaultTimeout),
		WhatsAppEnabled:  util.ParseBoolEnv("WHATSAPP_ENABLED", false),
		WhatsAppDSN:      os.Getenv("WHATSAPP_DB_DSN"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL: os.Getenv("TWILIO_WEBHOOK_URL"),
		Seed:             uint64(util.ParseInt64Env("COACH_SEED", 0)),
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = defaultAppDSN(config.StateDir)
		slog.Debug("No DATABASE_URL set, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = defaultWhatsAppDSN(config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"SEHACOACH_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"DIALOGUE_URL", config.DialogueURL,
		"DIALOGUE_TIMEOUT", config.DialogueTimeout,
		"WHATSAPP_ENABLED", config.WhatsAppEnabled,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "",
		"COACH_SEED_SET", config.Seed != 0)

	return config
}

func defaultAppDSN(stateDir string) string {
	return filepath.Join(stateDir, DefaultAppDBFileName)
}

func defaultWhatsAppDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// parseCommandLineFlags applies command line overrides on top of the environment config.
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config *Config) error {
	envStateDir := config.StateDir

	fs.StringVar(&config.StateDir, "state-dir", config.StateDir, "state directory for SehaCoach data (overrides $SEHACOACH_STATE_DIR)")
	fs.StringVar(&config.DatabaseURL, "db-dsn", config.DatabaseURL, "profile store DSN, a Postgres URL or SQLite path (overrides $DATABASE_URL)")
	fs.StringVar(&config.RedisURL, "redis-url", config.RedisURL, "use Redis as the profile store (overrides $REDIS_URL)")
	fs.StringVar(&config.OpenAIKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&config.APIAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&config.DialogueURL, "dialogue-url", config.DialogueURL, "dialogue service base URL, defaults to this server (overrides $DIALOGUE_URL)")
	fs.DurationVar(&config.DialogueTimeout, "dialogue-timeout", config.DialogueTimeout, "dialogue request timeout (overrides $DIALOGUE_TIMEOUT)")
	fs.BoolVar(&config.WhatsAppEnabled, "whatsapp", config.WhatsAppEnabled, "connect to WhatsApp (overrides $WHATSAPP_ENABLED)")
	fs.StringVar(&config.WhatsAppDSN, "whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&config.QROutput, "qr-output", config.QROutput, "path to write the WhatsApp login QR code")
	fs.BoolVar(&config.NumericCode, "numeric-code", config.NumericCode, "use a numeric WhatsApp login code instead of a QR code")
	fs.Uint64Var(&config.Seed, "seed", config.Seed, "seed for reply selection, 0 seeds from the clock (overrides $COACH_SEED)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Derived DSNs follow a state directory given on the command line.
	if config.StateDir != envStateDir {
		if config.DatabaseURL == defaultAppDSN(envStateDir) {
			config.DatabaseURL = defaultAppDSN(config.StateDir)
		}
		if config.WhatsAppDSN == defaultWhatsAppDSN(envStateDir) {
			config.WhatsAppDSN = defaultWhatsAppDSN(config.StateDir)
		}
		slog.Debug("Updated DSNs based on state directory", "state_dir", config.StateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", config.StateDir,
		"dbDSN_set", config.DatabaseURL != "",
		"redisURL_set", config.RedisURL != "",
		"openaiKeySet", config.OpenAIKey != "",
		"apiAddr", config.APIAddr,
		"dialogueURL", config.DialogueURL,
		"whatsapp", config.WhatsAppEnabled)
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(config Config) []store.Option {
	var storeOpts []store.Option
	switch {
	case config.RedisURL != "":
		slog.Debug("Configuring Redis store", "redis_url_set", true)
		storeOpts = append(storeOpts, store.WithRedisURL(config.RedisURL))
	case config.DatabaseURL == "":
		slog.Debug("No database DSN provided, will use in-memory store")
	case store.DetectDSNType(config.DatabaseURL) == "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		storeOpts = append(storeOpts, store.WithPostgresDSN(config.DatabaseURL))
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", config.DatabaseURL)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(config.DatabaseURL))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(config Config) []genai.Option {
	var genaiOpts []genai.Option
	if config.OpenAIKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(config.OpenAIKey))
	}
	if config.GenAIDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true, config.StateDir))
	}
	return genaiOpts
}

// buildDialogueOptions points smart mode at DialogueURL, or at this server's own /chat.
func buildDialogueOptions(config Config) []dialogue.Option {
	base := config.DialogueURL
	if base == "" {
		base = loopbackURL(config.APIAddr)
	}
	return []dialogue.Option{
		dialogue.WithBaseURL(base),
		dialogue.WithTimeout(config.DialogueTimeout),
	}
}

// loopbackURL turns a listen address into a URL reachable from this host.
func loopbackURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
	return "http://" + host
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(config Config) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if config.WhatsAppDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(config.WhatsAppDSN))
	}
	if config.QROutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(config.QROutput))
	}
	if config.NumericCode {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio client options
func buildTwilioOptions(config Config) []twiliowhatsapp.Option {
	return []twiliowhatsapp.Option{
		twiliowhatsapp.WithAccountSID(config.TwilioAccountSID),
		twiliowhatsapp.WithAuthToken(config.TwilioAuthToken),
		twiliowhatsapp.WithFromWhats(config.TwilioFrom),
	}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config) []api.Option {
	var apiOpts []api.Option
	if config.APIAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(config.APIAddr))
	}
	if config.GenAIDebug {
		apiOpts = append(apiOpts, api.WithGenAIOptions(genai.WithDebugMode(true, config.StateDir)))
	}
	return apiOpts
}

// run wires every component and blocks until ctx is cancelled or one of them fails.
func run(ctx context.Context, config Config) error {
	lock, err := lockfile.AcquireLock(config.StateDir, config.APIAddr)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.New(buildStoreOptions(config)...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	gen, err := genai.NewClient(buildGenAIOptions(config)...)
	if err != nil {
		slog.Warn("GenAI client unavailable, smart mode needs X-OpenAI-Key per request", "error", err)
	}
	var chatBackend dialogue.Remote
	if gen != nil {
		chatBackend = genai.NewDialogueService(gen)
	}

	c := coach.New(st, flow.NewEngine(flow.WithSeed(config.Seed)),
		coach.WithRemote(dialogue.NewClient(buildDialogueOptions(config)...)),
		coach.WithAnalyzer(mealscan.New(gen, config.Seed)),
		coach.WithMetrics(coach.NewMetrics(prometheus.DefaultRegisterer)),
	)

	services, apiOpts, closeServices, err := buildMessagingServices(config)
	if err != nil {
		return err
	}
	defer closeServices()
	srv := api.NewServer(c, chatBackend, append(buildAPIOptions(config), apiOpts...)...)

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		if err := svc.Start(gctx); err != nil {
			return fmt.Errorf("failed to start messaging service: %w", err)
		}
	}
	g.Go(func() error { return srv.Run(gctx) })
	for _, svc := range services {
		handler := messaging.NewResponseHandler(svc, c, messaging.WithDedup(st))
		g.Go(func() error { return handler.Run(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			return svc.Stop()
		})
	}
	slog.Info("SehaCoach running", "addr", config.APIAddr, "bridges", len(services), "smart_backend", chatBackend != nil)
	return g.Wait()
}

// buildMessagingServices connects the configured chat transports. The Twilio service also
// contributes its webhook route to the API server. The returned func disconnects them.
func buildMessagingServices(config Config) ([]messaging.Service, []api.Option, func(), error) {
	var services []messaging.Service
	var apiOpts []api.Option
	closeFn := func() {}

	if config.WhatsAppEnabled {
		wa, err := whatsapp.NewClient(buildWhatsAppOptions(config)...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect WhatsApp: %w", err)
		}
		services = append(services, messaging.NewWhatsAppService(wa))
		closeFn = wa.Close
	}

	if config.TwilioAccountSID != "" {
		tw, err := twiliowhatsapp.NewClient(buildTwilioOptions(config)...)
		if err != nil {
			closeFn()
			return nil, nil, nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		var twOpts []messaging.TwilioOption
		if config.TwilioWebhookURL != "" {
			twOpts = append(twOpts, messaging.WithSignatureValidation(config.TwilioAuthToken, config.TwilioWebhookURL))
		}
		twSvc := messaging.NewTwilioService(tw, twOpts...)
		services = append(services, twSvc)
		apiOpts = append(apiOpts, api.WithTwilioWebhook(twSvc.WebhookHandler))
	}
	return services, apiOpts, closeFn, nil
}
