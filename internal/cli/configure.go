package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollowaylab/reverie/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a starter configuration file",
	Long: `Write a configuration file with default values to the config path.
Edit it afterwards to set the model provider API key and persona.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	if err := loader.Save(config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", loader.GetConfigPath())
	return nil
}
