package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/foodlens/pkg/config"
	"github.com/papercomputeco/foodlens/pkg/logger"
	"github.com/papercomputeco/foodlens/relay"
)

const serveLongDesc string = `Run the ingredient analysis relay.

Settings are read from built-in defaults, then the optional TOML file
given by --config, then FOODLENS_* environment variables, then flags.
An upstream URL is required.

With --watch the config file is re-read on change and the prompt
revision, instruction and model are applied without a restart.

Examples:
  foodlens serve --upstream https://llm.example.com/api --api-key $KEY
  foodlens serve --config foodlens.toml --watch
  foodlens serve --storage sqlite --db foodlens.db --cache`

const serveShortDesc string = "Run the analysis relay server"

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	configPath string
	listen     string
	upstream   string
	apiKey     string
	model      string
	revision   string
	storage    string
	dbPath     string
	redisURL   string
	cache      bool
	watch      bool
	debug      bool
	jsonLogs   bool
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default :5000)")
	cmd.Flags().StringVarP(&cmder.upstream, "upstream", "u", "", "Upstream language model API URL")
	cmd.Flags().StringVar(&cmder.apiKey, "api-key", "", "Upstream API key")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Upstream model name (default gpt-3.5-turbo)")
	cmd.Flags().StringVarP(&cmder.revision, "revision", "r", "", "Prompt revision (see \"foodlens revisions\")")
	cmd.Flags().StringVar(&cmder.storage, "storage", "", "Record backend: none, memory, sqlite or redis")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to the SQLite record database")
	cmd.Flags().StringVar(&cmder.redisURL, "redis", "", "Redis URL for the record store")
	cmd.Flags().BoolVar(&cmder.cache, "cache", false, "Reuse recorded verdicts for identical prompts")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Reload the config file on change")
	cmd.Flags().BoolVarP(&cmder.debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Log as JSON")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	if c.watch && c.configPath == "" {
		return errors.New("--watch needs --config")
	}

	cfg, err := c.loadConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Debug: cfg.Debug,
		JSON:  cfg.LogFormat == "json",
	})
	defer func() { _ = log.Sync() }()

	r, err := relay.New(cfg, log)
	if err != nil {
		return fmt.Errorf("could not create relay: %w", err)
	}
	defer r.Close()

	if c.watch {
		go c.watchConfig(ctx, cmd, r, log)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down relay server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shut down cleanly: %w", err)
	}
	return <-errCh
}

// loadConfig layers flags that were set explicitly over the file and
// environment, then validates the result.
func (c *serveCommander) loadConfig(cmd *cobra.Command, lookup config.LookupEnv) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(c.configPath, lookup)
	if err != nil {
		return nil, err
	}
	c.applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *serveCommander) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = c.listen
	}
	if flags.Changed("upstream") {
		cfg.Upstream.URL = c.upstream
	}
	if flags.Changed("api-key") {
		cfg.Upstream.APIKey = c.apiKey
	}
	if flags.Changed("model") {
		cfg.Upstream.Model = c.model
	}
	if flags.Changed("revision") {
		cfg.Prompt.Revision = c.revision
	}
	if flags.Changed("storage") {
		cfg.Storage.Backend = c.storage
	}
	if flags.Changed("db") {
		cfg.Storage.Path = c.dbPath
		if !flags.Changed("storage") {
			cfg.Storage.Backend = config.StorageSQLite
		}
	}
	if flags.Changed("redis") {
		cfg.Storage.RedisURL = c.redisURL
		if !flags.Changed("storage") {
			cfg.Storage.Backend = config.StorageRedis
		}
	}
	if flags.Changed("cache") {
		cfg.Cache.Enabled = c.cache
	}
	if flags.Changed("debug") {
		cfg.Debug = c.debug
	}
	if flags.Changed("json-logs") && c.jsonLogs {
		cfg.LogFormat = "json"
	}
}

func (c *serveCommander) watchConfig(ctx context.Context, cmd *cobra.Command, r *relay.Relay, log *zap.Logger) {
	override := func(next *config.Config) { c.applyFlags(cmd, next) }
	err := config.Watch(ctx, c.configPath, os.LookupEnv, override, log, func(next *config.Config) {
		if err := r.Reload(next); err != nil {
			log.Warn("could not apply reloaded config", zap.Error(err))
			return
		}
		p := r.Analyzer().Profile()
		log.Info("applied reloaded config",
			zap.String("revision", p.Revision.Name),
			zap.String("model", p.Model),
		)
	})
	if err != nil {
		log.Error("config watcher stopped", zap.Error(err))
	}
}
