package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/config"
	"github.com/vlrscout/scout-engine/pkg/models"
	"github.com/vlrscout/scout-engine/pkg/services"
)

var (
	askTeam    string
	askMatches int
	askJSON    bool

	catalogJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one scouting question and exit",
	Example: `  scout-engine ask "What is Cloud9's win rate on Haven?"
  scout-engine ask "Which agents do they play?" --team Sentinels --matches 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, Version)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		// One-shot runs keep stdout for the answer.
		cfg.LogLevel = "warn"
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Error("Startup failed", zap.Error(err))
			return err
		}
		defer a.Close()

		req := services.AskRequest{Question: args[0]}
		if askTeam != "" {
			req.TeamName = &askTeam
		}
		if cmd.Flags().Changed("matches") {
			req.NumMatches = &askMatches
		}

		answer := a.assistant.Ask(cmd.Context(), req)
		if askJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(answer); err != nil {
				return err
			}
		} else {
			printAnswer(cmd.OutOrStdout(), answer)
		}
		if answer.Error != "" {
			return fmt.Errorf("question not answered: %s", answer.Error)
		}
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the schema catalog questions are answered from",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, Version)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cat, err := loadCatalog(cfg)
		if err != nil {
			return fmt.Errorf("failed to load schema catalog: %w", err)
		}
		return printCatalog(cmd.OutOrStdout(), cat.Describe(), catalogJSON)
	},
}

func init() {
	askCmd.Flags().StringVarP(&askTeam, "team", "t", "", "team to scope the question to")
	askCmd.Flags().IntVarP(&askMatches, "matches", "n", 10, "number of recent matches to consider")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full answer as JSON")

	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "print JSON instead of YAML")
}

func printAnswer(w io.Writer, answer *models.Answer) {
	fmt.Fprintln(w, answer.Interpretation)
	if answer.SQL != nil {
		fmt.Fprintf(w, "\nSQL:\n%s\n", strings.TrimSpace(*answer.SQL))
	}
	if answer.Results != nil {
		fmt.Fprintf(w, "\n%d row(s) in %dms\n", answer.Results.RowCount, answer.Results.ElapsedMS)
	}
	fmt.Fprintf(w, "\nsession: %s\n", answer.SessionID)
}

func printCatalog(w io.Writer, desc catalog.Description, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(desc)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(desc); err != nil {
		return err
	}
	return enc.Close()
}
