package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jzx17/syncqueue/internal/manifest"
)

func newValidateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a manifest and print its dependency levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(opts.ManifestPath)
			if err != nil {
				return err
			}

			levels := m.Levels()
			out := NewOutput(cmd.OutOrStdout(), opts.JSON)

			rows := make([][]string, 0, len(levels))
			for i, level := range levels {
				rows = append(rows, []string{strconv.Itoa(i), strings.Join(level, ", ")})
			}
			out.Print([]string{"LEVEL", "ITEMS"}, rows, map[string]any{
				"items":  len(m.Items),
				"levels": levels,
			})
			out.Line("")
			out.Line("%s: %d items in %d levels", opts.ManifestPath, len(m.Items), len(levels))
			return nil
		},
	}
}
