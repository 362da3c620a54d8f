package gridsync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gridsync",
	Short: "Show two column-aligned tables side by side",
	Long: `Gridsync serves a page with two tables whose column layout stays aligned.
Columns hidden on the upper table resize both tables, scrolling one scrolls the
other, and the rows of both come from one cached download.`,
	PersistentPreRun: bindFlags,
	SilenceUsage:     true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gridsync.toml)")
}

func initConfig() {
	if cfgFile != "" {
		slog.Debug("Using config file", "path", cfgFile)
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home and working directory with name ".gridsync" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
		viper.SetConfigName(".gridsync")
	}
	// Set environment variable prefix
	viper.SetEnvPrefix("gridsync")
	viper.AutomaticEnv()

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create an example config
			createExampleConfig()
		} else {
			slog.Error("Error reading config file", "error", err)
			os.Exit(1)
		}
	}

	slog.Debug("Config loaded", "file", viper.ConfigFileUsed())
}

const exampleConfig = `# Flags can be set here without hyphens, e.g. data-url becomes dataurl.
port = 9000
limit = 50
dataurl = "https://www.ag-grid.com/example-assets/olympic-winners.json"

# Replace the default olympic-winners columns:
#
# [[schema.fields]]
# key = "athlete"
# [[schema.fields]]
# key = "gold"
# group = "medals"
# [[schema.groups]]
# id = "medals"
# label = "Medals"
# derived = "total"
# derived-from = ["gold"]
#
# [labels.secondary]
# athlete = "Name"
`

func createExampleConfig() {
	configPath := "./.gridsync.toml"

	err := os.WriteFile(configPath, []byte(exampleConfig), 0o644)
	if err != nil {
		slog.Error("Error creating example config file", "error", err)
		os.Exit(1)
	}

	slog.Info("Example config file created", "path", configPath)
}

// set values to the PFlag variables from config, if they are set. Priority is still given to explicitly provided CLI flags.
func bindFlags(cmd *cobra.Command, _ []string) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// If using camelCase in the config file, replace hyphens with a camelCased string.
		// Since viper does case-insensitive comparisons, we don't need to bother fixing the case, and only need to remove the hyphens.
		configName := strings.ReplaceAll(f.Name, "-", "")

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && viper.IsSet(configName) {
			val := viper.Get(configName)

			err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val))
			if err != nil {
				slog.Error("Error setting flag from config", "flag", f.Name, "error", err)
				panic(err)
			}

			slog.Debug("Flag set to config value", "flag", f.Name, "value", val)
		}
	})
}
