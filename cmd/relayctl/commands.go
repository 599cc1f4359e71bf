package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-voice-relay/internal/repo"
	"github.com/tbourn/go-voice-relay/internal/services"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			if err := repo.AutoMigrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okMark(), "schema up to date")
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	var keep time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired cache entries, delivery claims and old rate windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			j := &services.Janitor{Store: repo.NewSQLStore(db), Keep: keep}
			res, err := j.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), res, func(w io.Writer) { renderPurge(w, res) })
		},
	}
	cmd.Flags().DurationVar(&keep, "keep", time.Hour, "retain rate-limit windows newer than this")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show session and cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			st, err := repo.NewSQLStore(db).Stats(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), st, func(w io.Writer) { renderStats(w, st) })
		},
	}
}

func sessionsCmd() *cobra.Command {
	var (
		platform string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the most recent voice sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			svc := &services.AdminService{Store: repo.NewSQLStore(db), MaxPageSize: 500}
			rows, total, err := svc.ListSessions(cmd.Context(), platform, 1, limit)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), rows, func(w io.Writer) { renderSessions(w, rows, total) })
		},
	}
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "whatsapp or telegram")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions")
	return cmd
}

func emit(w io.Writer, v any, table func(io.Writer)) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	table(w)
	return nil
}
