package main

import (
	"fmt"
	"os"

	"github.com/notargets/meshloop/config"
	"github.com/notargets/meshloop/runner"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "meshloop",
	Short:        "Parallel loops over unstructured meshes.",
	Long:         "Runs demonstration loops over generated grids and mesh files through the blocked, colored loop engine.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().String("config", "", "HCL settings file")
	rootCmd.PersistentFlags().Int("part-size", 0, "elements per block (overrides the settings file)")
	rootCmd.PersistentFlags().Int("workers", 0, "concurrent blocks per color (overrides the settings file)")
	rootCmd.PersistentFlags().Int("diags", 0, "diagnostics level, 2 and above verifies every plan")
}

// settings resolves runner tunables from the settings file, the environment
// and the command line, in increasing precedence
func settings(cmd *cobra.Command) (runner.Config, error) {
	file := &config.File{}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return runner.Config{}, err
	}
	if path != "" {
		if file, err = config.Load(path); err != nil {
			return runner.Config{}, err
		}
	}
	if err := file.ApplyEnv(os.Environ()); err != nil {
		return runner.Config{}, err
	}
	flags := cmd.Flags()
	for name, dst := range map[string]*int{
		"part-size": &file.PartSize,
		"workers":   &file.Workers,
		"diags":     &file.Diags,
	} {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetInt(name); err != nil {
			return runner.Config{}, err
		}
	}
	if err := file.Validate(); err != nil {
		return runner.Config{}, fmt.Errorf("command line: %w", err)
	}

	level := max(file.LogLevel(), log.InfoLevel)
	if getFlag(cmd, "verbose") {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	return file.RunnerConfig(), nil
}

func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

func getInt(cmd *cobra.Command, flag string) int {
	r, err := cmd.Flags().GetInt(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}
