package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"cloudwright/core/engine"
	"cloudwright/core/registry"
	"cloudwright/core/spec"
	"cloudwright/internal/config"
)

// openEngine builds an engine from the effective configuration
func openEngine() (*engine.Engine, error) {
	eng, err := engine.Open(config.Get())
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return eng, nil
}

// loadRegistry loads the service registry without opening the catalog,
// for commands that never price anything
func loadRegistry() (*registry.Registry, error) {
	if dir := config.Get().Catalog.RegistryDir; dir != "" {
		return registry.LoadDir(dir)
	}
	return registry.Default()
}

// loadSpec reads a spec from a file, or stdin when path is "-"
func loadSpec(path string) (*spec.ArchSpec, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}
	return spec.Parse(data)
}

// emitSpec writes a spec as YAML (or JSON under --json) to a file, or
// stdout when out is empty
func emitSpec(s *spec.ArchSpec, out string) error {
	var data []byte
	var err error
	if jsonOut {
		data, err = s.ToJSON()
	} else {
		data, err = s.ToYAML()
	}
	if err != nil {
		return err
	}
	return emitBytes(data, out)
}

func emitBytes(data []byte, out string) error {
	if out == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

// printJSON writes indented JSON to stdout
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const boxWidth = 73

var (
	boxTop = "┌" + strings.Repeat("─", boxWidth) + "┐"
	boxSep = "├" + strings.Repeat("─", boxWidth) + "┤"
	boxBot = "└" + strings.Repeat("─", boxWidth) + "┘"
)

func boxTitle(title string) string {
	pad := boxWidth - len(title)
	left := pad / 2
	return "│" + strings.Repeat(" ", left) + title + strings.Repeat(" ", pad-left) + "│"
}

func boxRow(label, amount string) string {
	return fmt.Sprintf("│ %-50s %20s │", truncate(label, 50), amount)
}

func boxNote(note string) string {
	return fmt.Sprintf("│   └─ %-64s   │", truncate(note, 64))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// checkMark renders pass/fail for validation listings
func checkMark(passed bool) string {
	if passed {
		return "✓"
	}
	return "✗"
}
