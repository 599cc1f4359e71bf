// Command relayctl is the operator CLI: schema migrations, purging expired
// rows, and quick looks at relay activity without the admin API.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-voice-relay/internal/config"
	"github.com/tbourn/go-voice-relay/internal/repo"
)

var (
	envFile string
	asJSON  bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorMark(), err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "relayctl",
		Short:         "Operate the voice relay store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("env file %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&envFile, "env-file", "e", ".env", "env file to load")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		migrateCmd(),
		purgeCmd(),
		statsCmd(),
		sessionsCmd(),
	)
	return root
}

// openDB connects using only the DB_* settings.
func openDB() (*gorm.DB, error) {
	dbc, err := config.LoadDB()
	if err != nil {
		return nil, err
	}
	return repo.Open(dbc.Driver, dbc.Path, dbc.DatabaseURL)
}
