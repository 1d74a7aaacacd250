package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score [spec file]",
	Short: "Grade a spec across the five quality dimensions",
	Long: `Score a spec on reliability, security, cost efficiency, compliance,
and complexity, weighted into a single grade.

Examples:
  cloudwright score arch.yaml
  cloudwright score arch.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	s, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	card, err := eng.Score(s)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(card)
	}

	fmt.Printf("%-18s %7s %7s\n", "DIMENSION", "WEIGHT", "SCORE")
	for _, d := range card.Dimensions {
		fmt.Printf("%-18s %7.2f %7.1f\n", d.Name, d.Weight, d.Score)
		for _, f := range d.Findings {
			fmt.Printf("  - %s\n", f)
		}
	}
	fmt.Printf("\nTotal: %.1f (%s)\n", card.Total, card.Grade)
	return nil
}
