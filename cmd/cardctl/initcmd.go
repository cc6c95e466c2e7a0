package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Pre-create the corpus directory layout",
		Long: `Create the corpus root with one directory per color-identity shard
and an empty progress file, so the tree is browsable before the first
ingestion run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, cardStore, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cardStore.Init(); err != nil {
				return err
			}
			fmt.Println("Initialized corpus at", cardStore.Root())
			return nil
		},
	}
}
