package main

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bmeg/fhirizer/internal/config"
	"github.com/bmeg/fhirizer/internal/domain/sources"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "fhirizer",
		Short:         "Transform GDC, ICGC and Cellosaurus metadata into FHIR resources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Human-readable console logging")

	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(loadCmd())

	if err := rootCmd.Execute(); err != nil {
		logger := newLogger(os.Stderr, false)
		logger.Error().Err(err).Msg("fhirizer failed")
		os.Exit(1)
	}
}

// newLogger writes JSON lines to w, or console output when verbose.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	if verbose {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

// loadConfig reads configuration with cmd's flags, including the
// persistent ones, taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	flags.AddFlagSet(cmd.Flags())
	flags.AddFlagSet(cmd.InheritedFlags())
	return config.Load(flags)
}

func addSourceFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("source", "s", "", "Kind of input record: "+strings.Join(sources.Names(), ", "))
}
