package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/net-toolbox/onboarder/internal/model"
)

var rootCmd = &cobra.Command{
	Use:   model.AppName,
	Short: "Onboard network devices into inventory",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help() //nolint:errcheck // on failure there is nothing left to print
	},
}

var (
	cfgFile  string
	logLevel int
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	rootCmd.PersistentFlags().CountVarP(&logLevel, "verbose", "v", "increase logging verbosity (-v debug, -vv trace)")
}
