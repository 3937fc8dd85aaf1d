// Package cmd wires the command line to the application.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Mustansir-06/MermaidPad/internal/app"
	"github.com/Mustansir-06/MermaidPad/internal/infrastructure/sqlite"
	"github.com/Mustansir-06/MermaidPad/internal/log"
	"github.com/Mustansir-06/MermaidPad/internal/settings"
	"github.com/Mustansir-06/MermaidPad/internal/tracing"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version = "dev"
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:     "mermaidpad [file]",
	Short:   "A terminal Mermaid editor with live preview",
	Long:    `A terminal editor for Mermaid diagrams with a synchronized live preview pane, auto-render, and session persistence.`,
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runApp,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/mermaidpad/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false,
		"write a debug log next to the config file")
	rootCmd.Flags().Bool("no-auto-render", false,
		"disable automatic preview rendering")
}

func runApp(cmd *cobra.Command, args []string) error {
	store, err := settings.NewStore(cfgFile)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	prefs := store.Load()

	dataDir := filepath.Dir(store.Path())

	if flagDebug, _ := cmd.Flags().GetBool("debug"); flagDebug {
		debug = true
	}
	if os.Getenv("MERMAIDPAD_DEBUG") != "" {
		debug = true
	}
	if debug || prefs.Debug {
		cleanup, logErr := log.Init(filepath.Join(dataDir, "debug.log"))
		if logErr == nil {
			defer cleanup()
		}
	}

	if noAuto, _ := cmd.Flags().GetBool("no-auto-render"); noAuto {
		prefs.AutoRender = false
	}

	if prefs.Tracing.Enabled && prefs.Tracing.FilePath == "" {
		prefs.Tracing.FilePath = filepath.Join(dataDir, "traces", "traces.jsonl")
	}
	provider, err := tracing.NewProvider(prefs.Tracing)
	if err != nil {
		return fmt.Errorf("configuring tracing: %w", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	var recents *sqlite.RecentRepository
	if db, dbErr := sqlite.Open(filepath.Join(dataDir, "recent.db")); dbErr == nil {
		defer func() { _ = db.Close() }()
		recents = sqlite.NewRecentRepository(db)
	} else {
		// History is a convenience; the editor runs without it.
		log.ErrorErr(log.CatStore, dbErr, "Opening recent-documents database")
	}

	filePath := ""
	if len(args) == 1 {
		filePath = args[0]
	}

	model, err := app.New(app.Config{
		Store:    store,
		Prefs:    prefs,
		FilePath: filePath,
		Recents:  recents,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
