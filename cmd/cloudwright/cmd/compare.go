package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cloudwright/core/spec"
)

var compareTargets []string

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare [spec file]",
	Short: "Reprice a spec on other providers",
	Long: `Translate every component to its equivalent on the target providers
and price the translated designs.

Examples:
  cloudwright compare arch.yaml --target gcp
  cloudwright compare arch.yaml --target gcp --target azure`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringSliceVarP(&compareTargets, "target", "t", nil, "target providers (aws, gcp, azure)")
	compareCmd.MarkFlagRequired("target")
}

func runCompare(cmd *cobra.Command, args []string) error {
	s, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	targets := make([]spec.Provider, len(compareTargets))
	for i, t := range compareTargets {
		p := spec.Provider(t)
		if !spec.ValidProvider(p) {
			return fmt.Errorf("unknown provider %q", t)
		}
		targets[i] = p
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	estimate, err := eng.Estimate(ctx, s)
	if err != nil {
		return err
	}
	alts, err := eng.CompareProviders(ctx, s, targets)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"baseline":     estimate,
			"alternatives": alts,
		})
	}

	fmt.Printf("%s on %s: $%.2f/month\n\n", s.Name, s.Provider, estimate.MonthlyTotal)
	printAlternatives(estimate.MonthlyTotal, alts)
	return nil
}
