package commands

import (
	"fmt"

	"github.com/MultiDragon/libpuns/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample libpuns configuration file.

By default the file is created at $XDG_CONFIG_HOME/libpuns/config.yaml.
Use --config to choose a different path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error
	if cfgFile != "" {
		configPath, err = cfgFile, config.InitConfigToPath(cfgFile, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("A random JWT secret was generated for the control plane.")
	fmt.Printf("Start the server with: libpuns serve --config %s\n", configPath)
	return nil
}
