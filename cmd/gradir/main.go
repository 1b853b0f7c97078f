/*
Gradir parses, verifies and optimizes gradient computation graphs in their
textual form. The optimizer propagates structural-zero information through
each graph, collapsing gradient regions that only ever see zeros, splicing
live regions inline and replacing guarded additions with plain ones.
*/
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DuckSoft/gradir/internal/config"
	"github.com/DuckSoft/gradir/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "gradir",
	Short: "Optimizer for gradient computation graphs",
	Long: `Gradir reads gradient computation graphs in their textual form,
verifies their structure and runs zero-specialization over them:
gradient regions that only ever see structural zeros collapse into
zero literals, live regions are spliced inline and guarded additions
are rewritten into plain ones.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.config/gradir/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.Bool("no-color", false, "disable styled output")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GRADIR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine, the defaults cover everything.
	_ = viper.ReadInConfig()

	if noColor, _ := rootCmd.PersistentFlags().GetBool("no-color"); noColor {
		viper.Set("output.color", false)
	}
}

// loadConfig resolves the effective configuration and builds the logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg, log, nil
}
