package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sitepilot/internal/browser"
	"sitepilot/internal/config"
	"sitepilot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose     bool
	root        string
	browserName string
	framework   string
	headless    bool
	domain      string

	settings *config.Settings
	logger   *zap.Logger

	// launchBrowser starts the browser for a session.
	launchBrowser browser.LaunchFunc = browser.Launch
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sitepilot",
	Short: "Self-learning browser automation",
	Long: `sitepilot drives a browser through named actions such as fill_email or
click_sign_in. It remembers which locators found each element, keeps the
best ones first and stores everything as editable YAML under sites/.

Run without arguments to start the interactive shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(config.Path(root))
		if err != nil {
			return err
		}
		logger, err = logging.New(logging.Options{
			Verbose:    verbose,
			JSON:       settings.Logging.JSON,
			Level:      settings.Logging.Level,
			File:       settings.Logging.File,
			Categories: settings.Logging.Categories,
		})
		if err != nil {
			return err
		}
		logging.For(logger, logging.CategoryBoot).Debug("Loaded settings",
			zap.String("root", root),
			zap.String("framework", settings.Browser.Framework),
			zap.Bool("interactive", settings.Interactive))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runShell,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&root, "root", "r", ".", "Directory holding sitepilot.yml and sites/")
	rootCmd.PersistentFlags().StringVarP(&browserName, "browser", "b", "", "Browser to launch (chrome, chromium, firefox, webkit)")
	rootCmd.PersistentFlags().StringVar(&framework, "framework", "", "Browser framework (rod, playwright)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Run the browser without a window")
	rootCmd.PersistentFlags().StringVarP(&domain, "domain", "d", "", "Domain to start on")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(cleanCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
