package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/spf13/cobra"
)

var picksCmd = &cobra.Command{
	Use:   "picks",
	Short: "Manage the user's highlight and gallery picks",
}

var picksSetCmd = &cobra.Command{
	Use:   "set <book-id>",
	Short: "Lock highlights and gallery photos for a book",
	Long: `Store the photos the user picked. Later plans use these picks instead of
selecting automatically, until they are reset.

Examples:
  trip-book picks set paris --highlights eiffel-1,louvre-2 --gallery lyon-1`,
	Args: cobra.ExactArgs(1),
	RunE: runPicksSet,
}

var picksResetCmd = &cobra.Command{
	Use:   "reset <book-id>",
	Short: "Drop the user's picks so plans select automatically again",
	Args:  cobra.ExactArgs(1),
	RunE:  runPicksReset,
}

func init() {
	rootCmd.AddCommand(picksCmd)
	picksCmd.AddCommand(picksSetCmd)
	picksCmd.AddCommand(picksResetCmd)

	picksSetCmd.Flags().StringSlice("highlights", nil, "Highlight photo ids, in order")
	picksSetCmd.Flags().StringSlice("gallery", nil, "Gallery photo ids, in order")
}

func runPicksSet(cmd *cobra.Command, args []string) error {
	highlights := splitIDs(mustGetStringSlice(cmd, "highlights"))
	gallery := splitIDs(mustGetStringSlice(cmd, "gallery"))
	if len(highlights) == 0 && len(gallery) == 0 {
		return errors.New("--highlights or --gallery is required")
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	picks := &database.StoredPicks{
		BookID:     args[0],
		Source:     database.PicksSourceUser,
		Highlights: highlights,
		Gallery:    gallery,
	}
	if err := env.store.PutPicks(context.Background(), picks); err != nil {
		return fmt.Errorf("save picks: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(map[string]any{
			"source":     picks.Source,
			"highlights": picks.Highlights,
			"gallery":    picks.Gallery,
		})
	}
	fmt.Printf("Stored %d highlights and %d gallery photos for %s\n", len(highlights), len(gallery), args[0])
	return nil
}

func runPicksReset(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.store.ResetPicks(context.Background(), args[0]); err != nil {
		return fmt.Errorf("reset picks: %w", err)
	}
	fmt.Printf("Picks for %s reset\n", args[0])
	return nil
}
