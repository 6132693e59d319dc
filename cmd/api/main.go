package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raguls333/noolix-sub001/config"
	"github.com/Raguls333/noolix-sub001/db"
	"github.com/Raguls333/noolix-sub001/logging"
	"github.com/Raguls333/noolix-sub001/plan"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// runtime carries what every subcommand needs after flag parsing.
type runtime struct {
	envFiles []string
	cfg      config.Config
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}
	cmd := &cobra.Command{
		Use:           "noolix",
		Short:         "Commitment approval and delivery service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(rt.envFiles...)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
			if err != nil {
				return err
			}
			rt.cfg, rt.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringSliceVar(&rt.envFiles, "env-file", nil, "env files to load before reading the environment (default .env,.env.local)")

	cmd.AddCommand(newServeCmd(rt))
	cmd.AddCommand(newMigrateCmd(rt))
	cmd.AddCommand(newBootstrapCmd(rt))
	cmd.AddCommand(newPlanCmd(rt))
	return cmd
}

func newServeCmd(rt *runtime) *cobra.Command {
	var seed struct {
		email    string
		password string
		plan     string
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if seed.email != "" {
				if rt.cfg.Store != config.StoreMemory {
					return errors.New("--seed-email is only supported with STORE=memory")
				}
				p, _, err := a.bootstrap(ctx, "Default", plan.Plan(strings.ToUpper(seed.plan)), seed.email, seed.password, "Founder")
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				rt.logger.Info("seeded organization", zap.String("org_id", p.OrgID), zap.String("user_id", p.UserID))
			}

			return serve(ctx, rt.cfg, rt.logger, a.handler().Routes())
		},
	}
	cmd.Flags().StringVar(&seed.email, "seed-email", "", "create an organization and founder with this email at startup (memory store only)")
	cmd.Flags().StringVar(&seed.password, "seed-password", "", "password for the seeded founder")
	cmd.Flags().StringVar(&seed.plan, "seed-plan", string(plan.PlanPro), "plan of the seeded organization")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func serve(ctx context.Context, cfg config.Config, logger *zap.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", string(cfg.Store)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newMigrateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), rt, func(ctx context.Context, a *app) error {
				if err := db.Migrate(ctx, a.pool); err != nil {
					return err
				}
				rt.logger.Info("migrations applied")
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the state of every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), rt, func(ctx context.Context, a *app) error {
				return db.MigrationStatus(ctx, a.pool)
			})
		},
	})
	return cmd
}

func newBootstrapCmd(rt *runtime) *cobra.Command {
	var (
		orgName  string
		planName string
		email    string
		password string
		fullName string
	)
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create an organization with its founder and print the founder's token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), rt, func(ctx context.Context, a *app) error {
				p, token, err := a.bootstrap(ctx, orgName, plan.Plan(strings.ToUpper(planName)), email, password, fullName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "org_id=%s\nuser_id=%s\ntoken=%s\n", p.OrgID, p.UserID, token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "organization name")
	cmd.Flags().StringVar(&planName, "plan", string(plan.PlanFree), "organization plan (FREE, STARTER, PRO)")
	cmd.Flags().StringVar(&email, "email", "", "founder email")
	cmd.Flags().StringVar(&password, "password", "", "founder password")
	cmd.Flags().StringVar(&fullName, "name", "Founder", "founder full name")
	for _, f := range []string{"org", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newPlanCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect or change organization plans",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get ORG_ID",
		Short: "Print an organization's plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), rt, func(ctx context.Context, a *app) error {
				p, err := a.plans.PlanFor(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set ORG_ID PLAN",
		Short: "Move an organization to another plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), rt, func(ctx context.Context, a *app) error {
				return a.plans.ChangePlan(ctx, args[0], plan.Plan(strings.ToUpper(args[1])))
			})
		},
	})
	return cmd
}

// withPool runs fn against the PostgreSQL-backed app. Commands that change
// stored state make no sense against the in-memory store.
func withPool(ctx context.Context, rt *runtime, fn func(ctx context.Context, a *app) error) error {
	if rt.cfg.Store != config.StorePostgres {
		return fmt.Errorf("this command requires STORE=%s", config.StorePostgres)
	}
	a, err := newApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
