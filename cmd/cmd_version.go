package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/standard-charity/indexer/modules/charity"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show standard-charity-indexer version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println(charity.Version)
			return nil
		},
	}
}
