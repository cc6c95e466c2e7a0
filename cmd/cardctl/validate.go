package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every stored card file for integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, cardStore, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := cardStore.Validate()
			if err != nil {
				return err
			}

			fmt.Printf("Checked %d cards: %d valid, %d invalid\n",
				report.Total, report.Valid, report.Invalid)
			for _, e := range report.Errors {
				fmt.Println(" -", e.Error())
			}
			if report.Invalid > 0 {
				return fmt.Errorf("%d invalid cards", report.Invalid)
			}
			return nil
		},
	}
}
