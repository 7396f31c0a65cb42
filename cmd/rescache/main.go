// Command rescache drives the resource loader and response cache: a synthetic
// benchmark, an effective-config dump and a fingerprint helper.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/rescache/config"
	"github.com/IvanBrykalov/rescache/response"
)

var version = "dev"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "rescache",
		Short:         "rescache: lazy resource loading and answer caching",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (default: ./rescache.yaml if present)")

	loadConfig := func() (*config.Config, error) { return config.Load(cfgPath) }

	root.AddCommand(
		newBenchCmd(loadConfig),
		newConfigCmd(loadConfig),
		newFingerprintCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newConfigCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint TEXT...",
		Short: "Print the normalized form and cache key of each question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, q := range args {
				fmt.Fprintf(w, "%s\t%q\n", response.Fingerprint(q), response.Normalize(q))
			}
			return nil
		},
	}
}
