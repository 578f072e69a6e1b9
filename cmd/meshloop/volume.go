package main

import (
	"context"
	"fmt"
	"os"

	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner"
	"github.com/notargets/meshloop/solver"
	"github.com/spf13/cobra"
)

var volumeCmd = &cobra.Command{
	Use:   "volume <meshfile>",
	Short: "Measure the cells of a tetrahedral mesh file (Gambit .neu, Gmsh).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings(cmd)
		if err != nil {
			return err
		}
		reg := mesh.NewRegistry()
		vm, err := mesh.LoadVolumeMesh(reg, "", args[0])
		if err != nil {
			return err
		}
		kr := runner.NewRunner(reg, cfg)
		report, err := solver.MeasureVolume(context.Background(), kr, vm)
		if err != nil {
			return err
		}
		fmt.Println(report)
		if getFlag(cmd, "timing") {
			return kr.Metrics().Dump(os.Stdout)
		}
		return nil
	},
}

func init() {
	volumeCmd.Flags().Bool("timing", false, "print per loop timing when done")
	rootCmd.AddCommand(volumeCmd)
}
