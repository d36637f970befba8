package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"inferd/internal/config"
)

// app carries state shared by subcommands. Each root command gets its own
// viper instance so tests can build commands side by side.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	_, root := newApp()
	return root
}

func newApp() (*app, *cobra.Command) {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "inferd: model cache and inference server",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (.yaml, .json or .toml)")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.String("log-format", config.DefaultLogFormat, "log format: console or json")
	pf.String("catalog", "", "catalog file or directory layered over the built-in models")
	pf.String("catalog-db", "", "sqlite catalog database")
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("catalog_path", pf.Lookup("catalog"))
	_ = a.v.BindPFlag("catalog_db", pf.Lookup("catalog-db"))

	root.AddCommand(
		a.newServeCmd(),
		a.newCatalogCmd(),
		a.newPredictCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return a, root
}

// loadConfig layers flags > INFERD_* env > config file > defaults.
func (a *app) loadConfig(cmd *cobra.Command) error {
	v := a.v
	v.SetEnvPrefix("INFERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// warmup has no default so "unset" survives into config.Config
	_ = v.BindEnv("warmup")

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if f := cmd.Flags().Lookup("warmup"); f != nil && f.Changed {
		w, _ := cmd.Flags().GetBool("warmup")
		cfg.Warmup = &w
	}
	if f := cmd.Flags().Lookup("cors-origins"); f != nil && f.Changed {
		cfg.CORS.AllowedOrigins = splitCSV(f.Value.String())
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", config.DefaultAddr)
	v.SetDefault("grpc_addr", "")
	v.SetDefault("catalog_path", "")
	v.SetDefault("catalog_db", "")
	v.SetDefault("cache_capacity", config.DefaultCacheCapacity)
	v.SetDefault("batch_chunk_size", config.DefaultBatchChunkSize)
	v.SetDefault("shard_concurrency", 0)
	v.SetDefault("log_level", config.DefaultLogLevel)
	v.SetDefault("log_format", config.DefaultLogFormat)
	v.SetDefault("http_log_level", config.DefaultHTTPLogLevel)
	v.SetDefault("max_body_bytes", config.DefaultMaxBodyBytes)
	v.SetDefault("predict_timeout", "")
	v.SetDefault("shutdown_timeout", config.DefaultShutdownTimeout)
	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.allowed_methods", []string{})
	v.SetDefault("cors.allowed_headers", []string{})
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.endpoint", "")
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

