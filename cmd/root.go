package cmd

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tomefetch/tomefetch/internal/config"
	"github.com/tomefetch/tomefetch/internal/core"
	"github.com/tomefetch/tomefetch/internal/engine/state"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/tui"
	"github.com/tomefetch/tomefetch/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Persistent flags
var (
	globalConfigPath string
	globalHost       string
	globalToken      string
)

// app carries what a command loaded once at startup.
type app struct {
	settings *config.Settings
	store    *state.Store
}

// loadApp prepares directories and logging, then loads settings and opens
// the history store. A store that cannot be opened is reported and skipped.
func loadApp() (*app, error) {
	if err := config.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create app dirs: %w", err)
	}
	utils.ConfigureDebug(config.GetLogsDir())

	var settings *config.Settings
	var err error
	if globalConfigPath != "" {
		settings, err = config.LoadSettingsFrom(globalConfigPath)
	} else {
		settings, err = config.LoadSettings()
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	utils.CleanupLogs(settings.General.LogRetentionCount)

	a := &app{settings: settings}
	store, err := state.Open(config.GetStateDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		utils.Debug("Failed to open state db: %v", err)
	} else {
		a.store = store
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			utils.Debug("Error closing state db: %v", err)
		}
	}
}

func (a *app) runtime() *types.RuntimeConfig {
	return a.settings.ToRuntimeConfig()
}

// downloadDir returns override, else the configured default directory.
func (a *app) downloadDir(override string) string {
	if override != "" {
		return override
	}
	if a.settings.General.DefaultDownloadDir != "" {
		return a.settings.General.DefaultDownloadDir
	}
	return "."
}

// recoverInterrupted marks rows a crashed process left running. Only the
// lock holder may call it.
func (a *app) recoverInterrupted() {
	if a.store == nil {
		return
	}
	n, err := a.store.MarkInterrupted()
	if err != nil {
		utils.Debug("Failed to mark interrupted downloads: %v", err)
		return
	}
	if n > 0 {
		utils.Debug("Marked %d interrupted downloads", n)
	}
}

func (a *app) newLocalService(runtime *types.RuntimeConfig, outputDir string) *core.LocalDownloadService {
	if a.store == nil {
		return core.NewLocalDownloadService(nil, runtime, a.downloadDir(outputDir))
	}
	return core.NewLocalDownloadService(a.store, runtime, a.downloadDir(outputDir))
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "tomefetch [url]...",
	Short:   "A terminal download manager for books and documents",
	Long:    `tomefetch downloads files in fixed-size chunks with pause, resume and cancel, from a terminal UI, a CLI or a local HTTP API.`,
	Version: Version,
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		batchFile, _ := cmd.Flags().GetString("batch")
		outputDir, _ := cmd.Flags().GetString("output")
		portFlag, _ := cmd.Flags().GetInt("port")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		lock, err := acquireInstanceLock()
		if err != nil {
			if errors.Is(err, errAlreadyRunning) {
				return fmt.Errorf("%w; use 'tomefetch add <url>' to queue downloads on it", err)
			}
			return err
		}
		defer releaseInstanceLock(lock)
		a.recoverInterrupted()

		service := a.newLocalService(a.runtime(), outputDir)
		defer func() { _ = service.Shutdown() }()

		api, err := startAPIServer(service, portFlag)
		if err != nil {
			// The dashboard works without the control API.
			fmt.Fprintf(os.Stderr, "Warning: control API disabled: %v\n", err)
		} else {
			defer api.Close()
		}

		urls, err := collectURLs(args, batchFile)
		if err != nil {
			return err
		}
		for _, u := range urls {
			if _, err := service.Add(u, outputDir, "", nil); err != nil {
				fmt.Fprintf(os.Stderr, "Error adding %s: %v\n", u, err)
			}
		}

		return runTUI(service, a.downloadDir(outputDir))
	},
}

// runTUI runs the dashboard until the user quits.
func runTUI(service core.DownloadService, defaultDir string) error {
	tui.ConfigureColors(os.Stdout)

	m := tui.InitialRootModel(service, defaultDir)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(tui.RootModel); ok {
		fm.Close()
	} else {
		m.Close()
	}
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "Settings file (JSON or YAML) instead of the app dir settings.json")
	rootCmd.PersistentFlags().StringVar(&globalHost, "host", "", "Server address for remote commands (or set TOMEFETCH_HOST)")
	rootCmd.PersistentFlags().StringVar(&globalToken, "token", "", "API token for remote commands (or set TOMEFETCH_TOKEN)")

	rootCmd.Flags().StringP("batch", "b", "", "File containing URLs to download (one per line)")
	rootCmd.Flags().StringP("output", "o", "", "Default output directory")
	rootCmd.Flags().IntP("port", "p", 0, "Port for the control API (default: first free from 1700)")
	rootCmd.SetVersionTemplate("tomefetch version {{.Version}}\n")
}
