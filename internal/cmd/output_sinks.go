package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacelink/spacelink/internal/output"
)

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// writeDocument renders doc in the requested format to the command's output,
// or to --out when set.
func writeDocument(cmd *cobra.Command, doc output.Document) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	rendered, err := output.Render(format, doc)
	if err != nil {
		return err
	}
	rendered = strings.TrimRight(rendered, "\n") + "\n"

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	outPath = strings.TrimSpace(outPath)
	if outPath == "" || outPath == "-" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
		return err
	}
	return writeFileAtomic(outPath, []byte(rendered))
}

// writeFileAtomic replaces path via a temp file in the same directory. The
// result is readable by the owner only.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	// #nosec G301 -- output directories follow the user's umask
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
