// Package cmd defines the version-radar CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/app"
	"github.com/JakeFAU/version-radar/internal/config"
	"github.com/JakeFAU/version-radar/internal/logging"
	"github.com/JakeFAU/version-radar/internal/radar"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// needsAppAnnotation marks commands that run against the application services.
// Others, such as help and completion, skip config loading and store connection.
const needsAppAnnotation = "version-radar/needs-app"

func needsApp(cmd *cobra.Command) bool {
	_, ok := cmd.Annotations[needsAppAnnotation]
	return ok
}

func appCommand(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[needsAppAnnotation] = "true"
	return cmd
}

// App is the set of services the commands use. Tests substitute their own.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Store() radar.Store
	Runner() *radar.Runner
	Close(ctx context.Context) error
}

// newApp is the application factory. It is a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

type rootState struct {
	cfgFile string
	app     App
}

func newRootCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version-radar",
		Short: "Watches a web page for new software versions.",
		Long: `version-radar scrapes a release page on a schedule, extracts the
current version with a CSS selector and a regular expression, stores it, and
sends an email when it changes.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsApp(cmd) {
				return nil
			}
			cfg, err := config.Load(state.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			state.app = appInstance

			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", "", "optional config file (yaml, json or toml)")

	cmd.AddCommand(appCommand(newServeCmd()))
	cmd.AddCommand(appCommand(newCheckCmd()))
	cmd.AddCommand(appCommand(newCurrentCmd()))

	return cmd
}

// Execute runs the CLI with the given arguments and closes the application
// services afterwards, whether or not the command succeeded.
func Execute(ctx context.Context, args []string) (err error) {
	state := &rootState{}
	root := newRootCmd(state)
	root.SetArgs(args)
	defer func() {
		if state.app == nil {
			return
		}
		closeCtx := context.WithoutCancel(ctx)
		if cerr := state.app.Close(closeCtx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close application: %w", cerr))
		}
	}()
	return root.ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
