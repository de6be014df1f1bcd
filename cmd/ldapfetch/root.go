package main

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wiltonsr/ldapfetch"
)

var ToolName = "ldapfetch"
var Version = "0.1.0"

type globalParameters struct {
	ConfigFile string
	Verbose    bool
	LogJSON    bool
	Timeout    time.Duration
}

var params = &globalParameters{}

var rootCmd = &cobra.Command{
	Use:   ToolName,
	Short: fmt.Sprintf("%s fetches ldap, ldaps and ldapi URLs", ToolName),
	Long:  fmt.Sprintf(`%s v%s`, ToolName, Version),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(params)
	},
	SilenceUsage: true,
}

// Execute is the main entry point for this tool
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&params.ConfigFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&params.Verbose, "verbose", "v", false, "Display verbose output")
	rootCmd.PersistentFlags().BoolVarP(&params.LogJSON, "log-json", "", false, "Write log lines as JSON")
	rootCmd.PersistentFlags().DurationVarP(&params.Timeout, "timeout", "", 0, "Upper bound for each directory fetch (default from config, 30s)")

	rootCmd.AddCommand(getCmd, serveCmd)
}

func setupLogging(p *globalParameters) {
	log.SetOutput(os.Stderr)
	if p.LogJSON {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	// Set debug level if verbose is configured
	if p.Verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

// loadConfig builds the fetcher configuration from defaults, the config
// file and then the global flags.
func loadConfig(cmd *cobra.Command) (*ldapfetch.Config, error) {
	config, err := readConfigFile(params.ConfigFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("timeout") {
		config.Timeout = params.Timeout
	}
	if params.Verbose {
		config.Debug = true
	}
	return config, nil
}
