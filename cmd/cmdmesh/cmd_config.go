package main

import (
	"github.com/spf13/cobra"
)

const redacted = "<redacted>"

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		c := *cfg
		for _, m := range []*string{&c.Models.Small.APIKey, &c.Models.Big.APIKey} {
			if *m != "" {
				*m = redacted
			}
		}

		data, err := c.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
