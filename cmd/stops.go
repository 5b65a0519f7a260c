package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/spf13/cobra"
)

var stopsCmd = &cobra.Command{
	Use:   "stops",
	Short: "Inspect and override the stops of a book",
}

var stopsListCmd = &cobra.Command{
	Use:   "list <book-id>",
	Short: "List stops with their stable ids",
	Long: `Cluster the photos of a book into stops and print them with the stable ids
used by rename and hide. Without --manifest or --dir, only the stored
overrides are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runStopsList,
}

var stopsRenameCmd = &cobra.Command{
	Use:   "rename <book-id> <stop-id> [name]",
	Short: "Rename a stop, or restore its derived name when name is omitted",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 3 {
			name = strings.TrimSpace(args[2])
		}
		return putOverride(cmd, args[0], args[1], database.OverridePatch{OverrideName: &name})
	},
}

var stopsHideCmd = &cobra.Command{
	Use:   "hide <book-id> <stop-id>",
	Short: "Hide a stop from the map and legend",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		hidden := true
		return putOverride(cmd, args[0], args[1], database.OverridePatch{Hidden: &hidden})
	},
}

var stopsUnhideCmd = &cobra.Command{
	Use:   "unhide <book-id> <stop-id>",
	Short: "Show a hidden stop again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		hidden := false
		return putOverride(cmd, args[0], args[1], database.OverridePatch{Hidden: &hidden})
	},
}

func init() {
	rootCmd.AddCommand(stopsCmd)
	stopsCmd.AddCommand(stopsListCmd, stopsRenameCmd, stopsHideCmd, stopsUnhideCmd)

	addInputFlags(stopsListCmd)
}

func putOverride(cmd *cobra.Command, bookID, stableID string, patch database.OverridePatch) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.store.PutOverride(context.Background(), bookID, stableID, patch); err != nil {
		return fmt.Errorf("save override: %w", err)
	}
	fmt.Printf("Override for %s stored\n", stableID)
	return nil
}

func runStopsList(cmd *cobra.Command, args []string) error {
	bookID := args[0]
	jsonOutput := mustGetBool(cmd, "json")

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if mustGetString(cmd, "manifest") == "" && mustGetString(cmd, "dir") == "" {
		return listOverrides(env, bookID, jsonOutput)
	}

	assets, _, _, err := loadInput(cmd)
	if err != nil {
		return err
	}
	gen, err := env.generator("", nil)
	if err != nil {
		return err
	}
	list, err := gen.Stops(context.Background(), bookID, assets)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(list)
	}
	for _, s := range list.Stops {
		flag := ""
		if s.Hidden {
			flag = " [hidden]"
		}
		fmt.Printf("%-20s %-30s %3d photos  days %v%s\n", s.StableID, stopName(s), s.TotalPhotos, s.DayIndices, flag)
	}
	for _, id := range list.OrphanedOverrides {
		fmt.Printf("override %s matches no stop\n", id)
	}
	return nil
}

func listOverrides(env *runtimeEnv, bookID string, jsonOutput bool) error {
	overrides, err := env.store.GetOverrides(context.Background(), bookID)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if jsonOutput {
		out := make([]database.StopOverride, 0, len(ids))
		for _, id := range ids {
			out = append(out, overrides[id])
		}
		return outputJSON(out)
	}
	if len(ids) == 0 {
		fmt.Printf("No overrides stored for %s\n", bookID)
		return nil
	}
	for _, id := range ids {
		o := overrides[id]
		name := "-"
		if o.OverrideName != nil && *o.OverrideName != "" {
			name = *o.OverrideName
		}
		fmt.Printf("%-20s %-30s hidden=%t\n", id, name, o.Hidden)
	}
	return nil
}

func stopName(s places.Stop) string {
	for _, n := range []*string{s.OverrideName, s.DisplayName, s.RawName} {
		if n != nil && *n != "" {
			return *n
		}
	}
	return "(unnamed)"
}
