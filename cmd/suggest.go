package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest photos to remove before planning",
	Long: `Rank likely rejects (severely blurry, dark, washed-out or unreadable photos)
and near-duplicate groups with the photo to keep. Nothing is changed; the
suggestions are for the curator to confirm.`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	addInputFlags(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	res, err := curate(cmd)
	if err != nil {
		return err
	}
	s := res.Suggestions

	if mustGetBool(cmd, "json") {
		return outputJSON(s)
	}

	fmt.Printf("Likely rejects (%d):\n", len(s.LikelyRejects))
	if len(s.LikelyRejects) == 0 {
		fmt.Println("  none")
	}
	for _, r := range s.LikelyRejects {
		fmt.Printf("  %-40s score %.2f  %s\n", r.PhotoID, r.QualityScore, strings.Join(r.Reasons, "; "))
	}

	fmt.Printf("\nDuplicate groups (%d):\n", len(s.DuplicateGroups))
	if len(s.DuplicateGroups) == 0 {
		fmt.Println("  none")
	}
	for i, g := range s.DuplicateGroups {
		fmt.Printf("  %d. keep %s, drop %s\n", i+1, g.KeepPhotoID, strings.Join(g.RejectPhotoIDs, ", "))
	}
	return nil
}
