package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meal-guardrails/internal/bootstrap"
	"meal-guardrails/internal/core/guardrails"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/infrastructure/database"
	"meal-guardrails/internal/pkg/common"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	driver   string
	dsn      string
	logLevel string
	timeout  time.Duration
}

// NewRootCmd 建立 guardrailsctl 指令
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "guardrailsctl",
		Short:         "Inspect guardrail rulesets and maintain meal scores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.InitLogger(opts.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&opts.driver, "driver", "", "override database.driver (postgres, sqlite, supabase)")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "override database.dsn")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall command timeout")

	root.AddCommand(newRulesetCmd(opts), newRescoreCmd(opts), newMigrateCmd(opts))
	return root
}

// loadConfig 載入設定並套用旗標
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func newRulesetCmd(opts *rootOptions) *cobra.Command {
	var (
		mode    string
		locale  string
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "ruleset <dietId>",
		Short: "Print the merged guardrails ruleset for a diet as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := guardrails.ParseMode(mode)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			services, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer services.Close()

			if refresh {
				if err := services.Guardrails.Invalidate(ctx, args[0], m, locale); err != nil {
					return fmt.Errorf("invalidate cached ruleset: %w", err)
				}
			}
			rs, err := services.Guardrails.Load(ctx, args[0], m, locale)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rs)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(guardrails.ModeRecipeAdaptation), "ruleset mode (recipe_adaptation, meal_planner, plan_chat)")
	cmd.Flags().StringVar(&locale, "locale", "", "locale, e.g. nl")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached ruleset before loading")
	return cmd
}

func newRescoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore <userId>",
		Short: "Recompute variety and combined scores for every meal of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			services, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer services.Close()

			res, err := services.Scoring.RescoreUser(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user %s: %d meals, %d updated, %d unchanged, %d failed (%s)\n",
				res.UserID, res.Total, res.Updated, res.Unchanged, res.Failed, res.Duration.Round(time.Millisecond))
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d meals failed to rescore", res.Failed, res.Total)
			}
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the relational schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverSupabase {
				return fmt.Errorf("migrate needs a postgres or sqlite driver, got %q", cfg.Database.Driver)
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			cfg.Database.AutoMigrate = false
			db, err := database.Open(&cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.AutoMigrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(database.Models()))
			return nil
		},
	}
}
