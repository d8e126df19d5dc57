package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/mapfile"
)

// errDocumentInvalid is returned after the problems have been reported, so
// the process exits non-zero.
var errDocumentInvalid = errors.New("map document is invalid")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a map document",
		Long: `Validate a map document without running it.

This command checks for:
  - YAML syntax errors
  - Missing or duplicate concept and connection names
  - Connections whose endpoints are not concepts of the map
  - Unknown activator types and out-of-range parameters

Examples:
  cogmap validate maps.yaml
  cogmap validate maps.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := resolvePath(cmd, args[0])

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read map document: %w", err)
			}

			var names []string
			var problems []string
			doc, err := mapfile.Parse(data)
			if err != nil {
				problems = append(problems, err.Error())
			} else {
				names = doc.Names()
				for i := range doc.Maps {
					if _, err := doc.Maps[i].Build(); err != nil {
						problems = append(problems, err.Error())
					}
				}
			}

			if err := outputValidationResults(cmd, names, problems, jsonOut); err != nil {
				return err
			}
			if len(problems) > 0 {
				return errDocumentInvalid
			}
			return nil
		},
	}
}

// outputValidationResults formats and outputs validation results.
func outputValidationResults(cmd *cobra.Command, names, problems []string, jsonOut bool) error {
	valid := len(problems) == 0

	if jsonOut {
		output := map[string]any{
			"valid":       valid,
			"maps":        names,
			"error_count": len(problems),
		}
		if !valid {
			output["errors"] = problems
			output["message"] = fmt.Sprintf("Found %d validation error(s)", len(problems))
		} else {
			output["message"] = "Map document is valid"
		}
		return printJSON(cmd, output)
	}

	out := cmd.OutOrStdout()
	if valid {
		fmt.Fprintf(out, "✓ Map document is valid - %d map(s):\n", len(names))
		for _, name := range names {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	}

	fmt.Fprintf(out, "✗ Found %d validation error(s):\n\n", len(problems))
	for i, p := range problems {
		fmt.Fprintf(out, "%d. %s\n", i+1, p)
	}
	return nil
}
