package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dharmateja03/CalBot/ai/intent"
	"github.com/dharmateja03/CalBot/ai/llm"
	"github.com/dharmateja03/CalBot/internal/profile"
	"github.com/dharmateja03/CalBot/internal/version"
	"github.com/dharmateja03/CalBot/plugin/calendar"
	"github.com/dharmateja03/CalBot/plugin/chat_apps/channels"
	"github.com/dharmateja03/CalBot/plugin/chat_apps/channels/telegram"
	"github.com/dharmateja03/CalBot/server"
	"github.com/dharmateja03/CalBot/server/service/scheduler"
	"github.com/dharmateja03/CalBot/store"
	"github.com/dharmateja03/CalBot/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "calbot",
	Short: `A conversational scheduling assistant. Tell it what to schedule in plain language and it finds the slot, checks conflicts, and books it.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Load .env from the working directory when present.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		setupLogger(instanceProfile)
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "err", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", "driver", instanceProfile.Driver, "err", err)
			os.Exit(1)
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "err", err)
			os.Exit(1)
		}

		engine, err := buildEngine(ctx, instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to build scheduling engine", "err", err)
			os.Exit(1)
		}

		channelRouter := buildChannelRouter(instanceProfile, engine)

		s, err := server.NewServer(ctx, instanceProfile, storeInstance, engine, channelRouter)
		if err != nil {
			slog.Error("failed to create server", "err", err)
			os.Exit(1)
		}

		c := make(chan os.Signal, 1)
		// SIGTERM is the graceful shutdown signal used by most process
		// managers (systemd, kubernetes).
		signal.Notify(c, terminationSignals...)

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "err", err)
			cancel()
		}

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			if channelRouter != nil {
				_ = channelRouter.Close()
			}
			cancel()
		}()

		<-ctx.Done()
	},
}

// buildEngine wires together the intent extractor, calendar provider,
// preferences source, and the scheduling engine itself.
func buildEngine(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) (*scheduler.Engine, error) {
	var extractor scheduler.IntentExtractor
	if instanceProfile.IsLLMEnabled() {
		llmService, err := llm.NewService(&llm.Config{
			Provider: instanceProfile.LLMProvider,
			Model:    instanceProfile.LLMModel,
			APIKey:   instanceProfile.LLMAPIKey,
			BaseURL:  instanceProfile.LLMBaseURL,
			Timeout:  instanceProfile.LLMTimeout,
		})
		if err != nil {
			return nil, err
		}
		go llmService.Warmup(ctx)
		extractor = intent.NewExtractor(llmService, slog.Default())
		slog.Info("intent extraction via LLM", "provider", instanceProfile.LLMProvider, "model", instanceProfile.LLMModel)
	} else {
		extractor = intent.NewDemoExtractor(slog.Default())
		slog.Info("no LLM API key configured, using demo intent extraction")
	}

	var provider calendar.Provider
	switch instanceProfile.CalendarProvider {
	case "google":
		googleProvider, err := calendar.NewGoogleProvider(
			instanceProfile.GoogleClientID,
			instanceProfile.GoogleClientSecret,
			instanceProfile.GoogleTokenDir,
			slog.Default(),
		)
		if err != nil {
			return nil, err
		}
		provider = googleProvider
	default:
		provider = calendar.NewLocalProvider(storeInstance)
	}

	return scheduler.NewEngine(
		extractor,
		provider,
		scheduler.NewStorePreferences(storeInstance),
		storeInstance,
		slog.Default(),
		scheduler.Config{
			LookaheadDays:         instanceProfile.LookaheadDays,
			MaxClarifyRounds:      instanceProfile.MaxClarifyRounds,
			AvailabilityTTL:       time.Duration(instanceProfile.AvailabilityTTLSecs) * time.Second,
			SessionIdleTimeout:    time.Duration(instanceProfile.SessionIdleTimeout) * time.Second,
			TurnsPerMinutePerUser: instanceProfile.TurnsPerMinutePerUser,
		},
	), nil
}

// buildChannelRouter sets up chat platform channels. Returns nil when
// no channel is configured; the web API still works.
func buildChannelRouter(instanceProfile *profile.Profile, engine *scheduler.Engine) *channels.ChannelRouter {
	router := channels.NewChannelRouter(func(ctx context.Context, userID, text string) (string, error) {
		response, err := engine.ProcessTurn(ctx, &scheduler.TurnRequest{
			UserID:    userID,
			Text:      text,
			Timestamp: time.Now(),
		})
		if err != nil {
			if reply, ok := scheduler.UserFacingReply(err); ok {
				return reply, nil
			}
			return "", err
		}
		return response.Reply, nil
	}, slog.Default())

	registered := false
	if instanceProfile.TelegramBotToken != "" {
		channel, err := telegram.NewTelegramChannel(&telegram.TelegramConfig{
			BotToken: instanceProfile.TelegramBotToken,
		})
		if err != nil {
			slog.Warn("telegram channel disabled", "err", err)
		} else {
			router.Register(channel)
			registered = true
		}
	}

	if !registered {
		return nil
	}
	return router
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28084)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28084, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("calbot")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setupLogger installs the default slog handler: JSON in prod for log
// shippers, text with debug level elsewhere.
func setupLogger(instanceProfile *profile.Profile) {
	var handler slog.Handler
	if instanceProfile.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(instanceProfile *profile.Profile) {
	fmt.Printf("CalBot %s started successfully!\n", instanceProfile.Version)

	if instanceProfile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if instanceProfile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", instanceProfile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", instanceProfile.Data)
	fmt.Printf("Database driver: %s\n", instanceProfile.Driver)
	fmt.Printf("Mode: %s\n", instanceProfile.Mode)
	if len(instanceProfile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", instanceProfile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", instanceProfile.Addr, instanceProfile.Port)
	}
	fmt.Printf("Try: curl -X POST http://localhost:%d/api/v1/chat -d '{\"user_id\":\"me\",\"text\":\"schedule 2 hours for the report tomorrow\"}' -H 'Content-Type: application/json'\n", instanceProfile.Port)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
