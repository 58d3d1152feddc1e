// Command assessctl validates assessment definitions and issues invites.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-assess/internal/catalog"
	"github.com/p-n-ai/pai-assess/internal/platform/config"
	"github.com/p-n-ai/pai-assess/internal/platform/database"
	"github.com/p-n-ai/pai-assess/internal/session"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "assessctl",
		Short:        "Manage assessment definitions and sessions",
		SilenceUsage: true,
	}
	root.AddCommand(newValidateCmd(), newInviteCmd(), newWalkCmd())
	return root
}

func defaultDir() string {
	if v := os.Getenv("ASSESS_DEFINITIONS_PATH"); v != "" {
		return v
	}
	return "./assessments"
}

func newValidateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every assessment definition in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			errs := catalog.ValidateDir(dir)
			for _, err := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %v\n", err)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d invalid definition(s)", len(errs))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", defaultDir(), "directory of assessment definitions")
	return cmd
}

func newWalkCmd() *cobra.Command {
	var dir, id string
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Print the question order of an assessment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := catalog.NewLoader(dir)
			if err != nil {
				return err
			}
			a, ok := loader.Get(id)
			if !ok {
				return fmt.Errorf("assessment %q not found in %s", id, dir)
			}

			out := cmd.OutOrStdout()
			for n, pos := range survey.Walk(a.Sections) {
				_, q, _ := a.Locate(pos.QuestionID)
				fmt.Fprintf(out, "%3d  %s/%s  %s\n", n+1, pos.SectionID, pos.QuestionID, q.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", defaultDir(), "directory of assessment definitions")
	cmd.Flags().StringVar(&id, "assessment", "", "assessment ID")
	_ = cmd.MarkFlagRequired("assessment")
	return cmd
}

func newInviteCmd() *cobra.Command {
	var dir, id, email string
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create a session in PostgreSQL and print its invite code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			loader, err := catalog.NewLoader(dir)
			if err != nil {
				return err
			}

			db, err := database.Open(ctx, cfg.Database.URL, database.PoolSize{Max: 2})
			if err != nil {
				return err
			}
			defer db.Close()
			if cfg.Database.Migrate {
				if err := db.Migrate(ctx); err != nil {
					return err
				}
			}

			store, err := session.NewPostgresStore(db.Pool)
			if err != nil {
				return err
			}
			engine := session.NewEngine(session.EngineConfig{
				Catalog: loader,
				Store:   store,
				Events:  session.NewPostgresEventLogger(db.Pool),
			})

			code, sessionID, err := engine.CreateInvite(ctx, id, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s\ninvite  %s\n", sessionID, code)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", defaultDir(), "directory of assessment definitions")
	cmd.Flags().StringVar(&id, "assessment", "", "assessment ID")
	cmd.Flags().StringVar(&email, "email", "", "respondent email")
	_ = cmd.MarkFlagRequired("assessment")
	return cmd
}
