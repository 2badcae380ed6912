// Package main is the transparency engine's CLI entrypoint: list
// devices, run the duplex engine in the foreground, and query a
// running instance's status. Structured the way the teacher's
// cmd/root.go wires persistent flags and subcommands, but collapsed
// into a single binary rather than the teacher's cmd/<subpackage>
// layout since there is only one engine here, not a file/realtime/
// directory family of analysis modes.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Arnold-Curtis/AudioGlass/internal/logging"
)

var (
	flagConfigPath string
	flagDebug      bool
	flagLogPath    string
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "transparency",
		Short: "Low-latency duplex audio passthrough engine",
	}

	root.PersistentFlags().StringVar(&flagConfigPath, "config", viper.GetString("config"), "Path to an EngineConfig YAML file")
	root.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", viper.GetBool("debug"), "Enable debug-level logging")
	root.PersistentFlags().StringVar(&flagLogPath, "logpath", viper.GetString("logpath"), "Path to the structured log file (stdout if unset)")

	if err := viper.BindPFlags(root.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "error binding flags: %v\n", err)
		os.Exit(1)
	}

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if flagDebug {
			level = slog.LevelDebug
		}
		logging.Init(logging.Options{FilePath: flagLogPath, Level: level})
		return nil
	}

	root.AddCommand(devicesCommand(), runCommand(), statusCommand())
	return root
}
