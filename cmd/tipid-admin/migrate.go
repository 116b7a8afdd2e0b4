package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tipid/internal/backend"
	"tipid/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if backend.BackendType(cfg.DataBackend) != backend.SQLiteBackend {
				return fmt.Errorf("migrate needs the sqlite backend, DATA_BACKEND is %q", cfg.DataBackend)
			}

			if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0755); err != nil {
				return fmt.Errorf("create db directory: %w", err)
			}
			dsn := storage.DSN(cfg.SQLiteDBPath)
			if err := storage.RunMigrations(dsn); err != nil {
				return err
			}
			v, dirty, err := storage.MigrationVersion(dsn)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Schema at version %d", v)
			if dirty {
				fmt.Fprint(out, " (dirty)")
			}
			if fi, err := os.Stat(cfg.SQLiteDBPath); err == nil {
				fmt.Fprintf(out, ", %s on disk", humanize.Bytes(uint64(fi.Size())))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
