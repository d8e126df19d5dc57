package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/store"
)

// exampleMaps is written by init. The ring map oscillates; the pair map
// converges in two epochs.
const exampleMaps = `# cogmap map document
#
# Run 'cogmap validate maps.yaml' to check it,
# 'cogmap run maps.yaml --epochs 5' to simulate the first map, and
# 'cogmap converge maps.yaml --map pair' to run pair until it settles.
maps:
  - name: ring
    description: Four signum concepts in a loop; c1 is pinned.
    concepts:
      - name: c1
        activator: {type: signum}
        output: 666
        fixed: true
      - name: c2
        activator: {type: signum}
        output: 0
      - name: c3
        activator: {type: signum}
        output: 0
      - name: c4
        activator: {type: signum}
        output: 0
    connections:
      - {name: "1-2", from: c1, to: c2, weight: -0.8}
      - {name: "2-3", from: c2, to: c3, weight: 1}
      - {name: "3-4", from: c3, to: c4, weight: 0.9}
      - {name: "4-1", from: c4, to: c1, weight: 1}
  - name: pair
    description: A fixed source driving a tanh concept.
    concepts:
      - name: a
        output: 1
        fixed: true
      - name: b
        activator: {type: tanh, include_previous: false}
        output: 0
    connections:
      - {name: ab, from: a, to: b, weight: 0.5}
`

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an example map document and the .cogmap directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			globalInit, _ := cmd.Flags().GetBool("global")
			jsonOut, _ := cmd.Flags().GetBool("json")

			var cogmapDir string
			if globalInit {
				if err := store.EnsureGlobalCogmapDir(); err != nil {
					return fmt.Errorf("failed to initialize global directory: %w", err)
				}
				var err error
				cogmapDir, err = store.GlobalCogmapPath()
				if err != nil {
					return fmt.Errorf("failed to get global path: %w", err)
				}
			} else {
				cogmapDir = store.LocalCogmapPath(root)
				if err := os.MkdirAll(cogmapDir, 0755); err != nil {
					return fmt.Errorf("failed to create .cogmap directory: %w", err)
				}
			}

			result := map[string]string{
				"status": "initialized",
				"path":   cogmapDir,
			}

			if !globalInit {
				mapsPath := filepath.Join(root, "maps.yaml")
				if _, err := os.Stat(mapsPath); errors.Is(err, os.ErrNotExist) {
					if err := os.WriteFile(mapsPath, []byte(exampleMaps), 0644); err != nil {
						return fmt.Errorf("failed to create maps.yaml: %w", err)
					}
					result["maps"] = mapsPath
				}
			} else {
				result["scope"] = "global"
			}

			if jsonOut {
				return printJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", cogmapDir)
			if p, ok := result["maps"]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote example maps to %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().Bool("global", false, "Initialize ~/.cogmap instead of the project directory")
	return cmd
}
