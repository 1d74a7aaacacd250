package cmd

import (
	"github.com/spf13/cobra"
)

var hardenOut string

// hardenCmd represents the harden command
var hardenCmd = &cobra.Command{
	Use:   "harden [spec file]",
	Short: "Apply baseline hardening defaults to a spec",
	Long: `Fill in the hardening defaults a production design should carry:
encryption and backup on data stores, multi-AZ on databases in larger
designs, auto scaling on compute. Settings explicitly turned off are
turned on; harden is the floor, not a suggestion.

Examples:
  cloudwright harden arch.yaml
  cloudwright harden arch.yaml --out hardened.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runHarden,
}

func init() {
	hardenCmd.Flags().StringVarP(&hardenOut, "out", "o", "", "write the hardened spec to a file instead of stdout")
}

func runHarden(cmd *cobra.Command, args []string) error {
	s, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	return emitSpec(eng.Harden(s), hardenOut)
}
