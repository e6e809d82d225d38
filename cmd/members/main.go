// Package main provides the members command-line tool for inspecting and saving
// the OpenAustralia members record sets.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"oamembers/internal/config"
	"oamembers/internal/formatter"
	"oamembers/internal/logger"
	"oamembers/internal/members"
	"oamembers/internal/store"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	base       string
	logLevel   string
	cached     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "members",
		Short:         "OpenAustralia members record sets",
		Long:          `Reads the OpenAustralia members XML documents and reshapes them into people, offices and chamber record sets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.base, "path", "", "Base URL or directory of the XML documents (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flags.cached, "cached", false, "Cache parsed documents for the duration of the command")

	rootCmd.AddCommand(createShowCmd(flags))
	rootCmd.AddCommand(createSaveCmd(flags))

	return rootCmd
}

// createShowCmd prints the head of one or more views.
func createShowCmd(flags *globalFlags) *cobra.Command {
	var (
		head  int
		plain bool
	)

	cmd := &cobra.Command{
		Use:       "show [view...]",
		Short:     "Print the first rows of each view",
		Long:      `Prints people, offices, senators, representatives and ministers, or only the named views.`,
		ValidArgs: members.ViewNames,
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			views := args
			if len(views) == 0 {
				views = members.ViewNames
			}

			engine := members.NewFromConfig(cfg, log)
			out := cmd.OutOrStdout()

			for _, name := range views {
				start := time.Now()

				tbl, err := engine.View(name, !plain)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}

				log.Debug("view built", "view", name, "rows", tbl.Len(), "duration", time.Since(start))

				fmt.Fprintf(out, "=== %s ===\n", name)
				fmt.Fprintln(out, formatter.RenderTable(tbl, formatter.Options{Head: head}))
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&head, "head", 5, "Rows to print per view (0 prints all)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Skip enrichment of people and offices")

	return cmd
}

// createSaveCmd writes the enhanced offices into SQLite.
func createSaveCmd(flags *globalFlags) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Upsert enhanced offices into a SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if dbPath != "" {
				cfg.Store.Path = dbPath
			}

			offices, err := members.NewFromConfig(cfg, log).Offices(true)
			if err != nil {
				return fmt.Errorf("building offices: %w", err)
			}

			officeStore, err := store.NewOfficeStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer officeStore.Close()

			n, err := officeStore.Save(context.Background(), offices)
			if err != nil {
				return err
			}

			log.Info("saved offices", "rows", n, "db", officeStore.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d offices to %s\n", n, officeStore.Path())

			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	return cmd
}

// loadConfig resolves the configuration file, applies flag overrides and
// builds the logger.
func loadConfig(flags *globalFlags, logOut io.Writer) (*config.Config, *logger.Logger, error) {
	cfg := config.Default()

	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return nil, nil, err
		}

		cfg = loaded
	}

	if flags.base != "" {
		cfg.Source.Base = flags.base
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	if flags.cached {
		cfg.Cache.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, logger.NewLoggerWithWriter(cfg.Logging.Level, logOut), nil
}
