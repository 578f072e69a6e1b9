package main

import (
	"fmt"

	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the execution plan of the edge flux loop.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings(cmd)
		if err != nil {
			return err
		}
		reg := mesh.NewRegistry()
		grid, err := mesh.NewQuadGrid(reg, "", getInt(cmd, "nx"), getInt(cmd, "ny"))
		if err != nil {
			return err
		}
		q, err := mesh.DeclDat[float64](reg, grid.Cells, 3, "values", nil)
		if err != nil {
			return err
		}
		res, err := mesh.DeclTempDat[float64](reg, grid.Cells, 3, "residual")
		if err != nil {
			return err
		}
		nrm, err := mesh.DeclDat[float64](reg, grid.Edges, 3, "edgeNormals", nil)
		if err != nil {
			return err
		}

		kr := runner.NewRunner(reg, cfg)
		plan, err := kr.PlanFor("compute_flux", grid.Edges,
			runner.ArgDat(q, 0, grid.EdgesToCells, runner.Read),
			runner.ArgDat(q, 1, grid.EdgesToCells, runner.Read),
			runner.ArgDat(res, 0, grid.EdgesToCells, runner.Inc),
			runner.ArgDat(res, 1, grid.EdgesToCells, runner.Inc),
			runner.ArgDirect(nrm, runner.Read),
			runner.ArgGbl([]float64{0}, runner.Max),
		)
		if err != nil {
			return err
		}

		fmt.Printf("Plan for compute_flux over %d edges, part size %d\n",
			grid.Edges.Size(), kr.PartSizeFor("compute_flux"))
		fmt.Print(plan.Stats())
		if err := plan.Verify(); err != nil {
			return fmt.Errorf("plan check failed: %w", err)
		}
		fmt.Println("Plan check passed")
		return nil
	},
}

func init() {
	planCmd.Flags().Int("nx", 64, "cells in x")
	planCmd.Flags().Int("ny", 64, "cells in y")
	rootCmd.AddCommand(planCmd)
}
