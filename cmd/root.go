// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/auth"
	"github.com/xkilldash9x/magpie/internal/browser"
	"github.com/xkilldash9x/magpie/internal/config"
	"github.com/xkilldash9x/magpie/internal/locator"
	"github.com/xkilldash9x/magpie/internal/observability"
)

// Execute runs the command tree under the given context.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
		return err
	}
	return nil
}

// app carries the state shared by all subcommands: the loaded configuration
// and the locator chains resolved from defaults plus any override file.
type app struct {
	cfgFile     string
	locatorFile string

	cfg      *config.Config
	resolver *locator.Resolver
}

// NewRootCommand builds the command tree. Each invocation creates a fresh
// tree so flags never leak between executions.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "magpie",
		Short:   "Magpie drives an authenticated browser session against a social feed.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bootstrap()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().StringVar(&a.locatorFile, "locators", "", "YAML file overriding the built-in locator chains")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newLoginCommand(a),
		newScrapeCommand(a),
		newMonitorCommand(a),
		newVersionCommand(),
	)
	return root
}

// bootstrap loads .env, the config file, and the environment, then brings up
// the logger and the locator chains. Runs before every subcommand.
func (a *app) bootstrap() error {
	// Credentials commonly live in a .env next to the binary; absence is fine.
	_ = godotenv.Load()

	v := viper.New()
	config.SetDefaults(v)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MAGPIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "magpie"})
		return err
	}
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger)
	observability.GetLogger().Info("Starting magpie.", zap.String("version", Version))

	chains := locator.Defaults()
	path := a.locatorFile
	if path == "" {
		path = cfg.Site.LocatorFile
	}
	if path != "" {
		chains, err = locator.LoadFile(path)
		if err != nil {
			return err
		}
	}
	a.resolver = locator.NewResolver(chains, observability.GetLogger())

	return nil
}

// sessionManager wires the browser manager into an auth session manager. The
// returned shutdown function must run after the operation completes.
func (a *app) sessionManager(cmd *cobra.Command) (*auth.Manager, func()) {
	logger := observability.GetLogger()
	bm := browser.NewManager(a.cfg, logger)

	factory := func(ctx context.Context) (auth.Session, error) {
		return bm.NewSession(ctx)
	}
	m := auth.NewManager(a.cfg, factory, a.resolver, logger)

	shutdown := func() {
		if err := bm.Shutdown(cmd.Context()); err != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
		observability.Sync()
	}
	return m, shutdown
}
