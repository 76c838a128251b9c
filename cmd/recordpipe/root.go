package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"recordpipe/internal/config"
	"recordpipe/internal/logging"
)

// globals are the persistent flags shared by every subcommand, plus the
// system configuration they resolve to.
type globals struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	sys config.System
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "recordpipe",
		Short: "Validate record files and split them into clean and error outputs",
		Long: `recordpipe reads delimited, fixed-width or XML files, checks every record
against the column declarations of a file configuration (mandatory fields,
data types, lengths, uniqueness) and writes each record to exactly one of two
CSV outputs: clean_<name>.csv or error_<name>.csv.

After a run, error files can be mailed and clean files bulk-loaded into a
database when the corresponding features are enabled in the system config.`,
		SilenceUsage:      true,
		PersistentPreRunE: g.load,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "system config path (yaml, json or toml)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the config; missing is fine")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "override logging.format (text, json)")

	root.AddCommand(
		newRunCmd(g),
		newCheckCmd(g),
		newWatchCmd(g),
		newBackendsCmd(),
	)
	return root
}

// load reads the dotenv file and the system config, then sets up logging.
func (g *globals) load(cmd *cobra.Command, _ []string) error {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	path := g.configPath
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
	sys, err := config.LoadSystem(path)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		sys.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		sys.Logging.Format = g.logFormat
	}
	logging.SetupTo(cmd.ErrOrStderr(), sys.Logging.Level, sys.Logging.Format)
	g.sys = sys
	return nil
}
