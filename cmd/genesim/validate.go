package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) validateCommand() *cobra.Command {
	var printYAML bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration without running it",
		Long: `Load the configuration, apply overrides and report every validation
error at once. With --print the effective configuration is written to
stdout as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			sim, err := a.simulation(cfg)
			if err != nil {
				return err
			}
			if printYAML {
				data, err := cfg.YAML()
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(data)
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "configuration valid: %d cycles, %d founders, %d breeders, %d traits\n",
				sim.Cycles, sim.InitialPopulation, len(sim.Breeders), len(sim.Traits))
			return err
		},
	}
	cmd.Flags().BoolVar(&printYAML, "print", false, "print the effective configuration")
	return cmd
}
