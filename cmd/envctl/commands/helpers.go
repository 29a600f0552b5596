package commands

import (
	"fmt"
	"os"
	"path/filepath"
)

// emitReport writes rendered markdown to outPath, or to stdout when
// outPath is empty.
func emitReport(outPath, markdown string) error {
	if outPath == "" {
		fmt.Print(markdown)
		return nil
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(outPath, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
