package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/app/apiapp"
	"github.com/ivankudzin/matchcore/internal/config"
	"github.com/ivankudzin/matchcore/internal/infra/logger"
	authsvc "github.com/ivankudzin/matchcore/internal/services/auth"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "reconcile",
		Short:        "Repair like/match invariants in the match store",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", defaultConfigPath(), "Path to the YAML config")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconcile pass (dry run unless --apply)",
		Args:  cobra.NoArgs,
		RunE:  runReconcile,
	}

	cmd.Flags().Bool("apply", false, "Write repairs instead of only reporting")
	cmd.Flags().Bool("backfill-likes", false, "Recreate missing likes for existing matches")
	cmd.Flags().Bool("archive", false, "Upload the report to object storage before repairing")
	cmd.Flags().BoolP("json", "j", false, "Print the report as JSON")

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	cfg.Reconcile.Apply, _ = cmd.Flags().GetBool("apply")
	cfg.Reconcile.BackfillLikes, _ = cmd.Flags().GetBool("backfill-likes")
	cfg.Reconcile.Archive, _ = cmd.Flags().GetBool("archive")
	asJSON, _ := cmd.Flags().GetBool("json")

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := apiapp.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown app", zap.Error(err))
		}
	}()

	report, ran, err := app.ReconcileJob().RunOnce(ctx)
	if err != nil {
		return err
	}
	if !ran {
		fmt.Fprintln(cmd.ErrOrStderr(), "another reconcile run holds the lock, nothing done")
		return nil
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Render())
	return nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for the admin endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = cfg.Auth.JWTAccessTTL
			}

			token, expiresAt, err := authsvc.NewJWTManager(cfg.Auth.JWTSecret, ttl).GenerateAccessToken(subject, role)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().String("subject", "ops", "Token subject")
	cmd.Flags().String("role", authsvc.RoleAdmin, "Token role")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to auth.jwt_access_ttl)")

	return cmd
}
