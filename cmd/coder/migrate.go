package main

import (
	"github.com/go-go-golems/coder/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the conversations, messages and files tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := storeSettingsFromViper()
			if err != nil {
				return err
			}
			// Open migrates
			st, err := store.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer st.Close()

			log.Info().Str("driver", st.Driver()).Msg("database schema is up to date")
			return nil
		},
	}
}
