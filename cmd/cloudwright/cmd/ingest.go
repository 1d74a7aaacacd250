package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cloudwright/core/ingest"
)

var ingestOut string

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Extract a spec from raw model output",
	Long: `Pull the first JSON object out of LLM output (markdown fences and
surrounding prose included), then normalize and validate it as a spec.
"-" reads from stdin.

Examples:
  cloudwright ingest response.txt
  pbpaste | cloudwright ingest - > arch.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "", "write the extracted spec to a file instead of stdout")
}

func runIngest(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	s, err := ingest.ParseArchSpec(string(raw))
	if err != nil {
		return err
	}
	return emitSpec(s, ingestOut)
}
