package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloudwright/core/spec"
)

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff [before] [after]",
	Short: "Show the structural delta between two spec revisions",
	Long: `Compare two spec files and report added, removed, and changed
components, connection changes, and the cost delta when both sides
carry estimates.

Examples:
  cloudwright diff arch-v1.yaml arch-v2.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	before, err := loadSpec(args[0])
	if err != nil {
		return err
	}
	after, err := loadSpec(args[1])
	if err != nil {
		return err
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	result := eng.Diff(before, after)
	if jsonOut {
		return printJSON(result)
	}
	printDiff(result)
	return nil
}

func printDiff(d *spec.DiffResult) {
	for _, c := range d.Added {
		fmt.Printf("+ %s (%s)\n", c.ID, c.Service)
	}
	for _, c := range d.Removed {
		fmt.Printf("- %s (%s)\n", c.ID, c.Service)
	}
	for _, ch := range d.Changed {
		fmt.Printf("~ %s: %s %v -> %v\n", ch.ComponentID, ch.Field, ch.OldValue, ch.NewValue)
	}
	for _, cc := range d.ConnectionChanges {
		fmt.Printf("%s connection %s -> %s\n", cc.Kind, cc.Source, cc.Target)
	}
	if d.CostDelta != 0 {
		fmt.Printf("cost delta: %+.2f/month\n", d.CostDelta)
	}
	fmt.Println(d.Summary)
}
