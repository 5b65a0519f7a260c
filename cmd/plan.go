package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/pipeline"
	"github.com/kozaktomas/trip-book/internal/planner"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <book-id>",
	Short: "Generate the book plan for a set of photos",
	Long: `Run the full pipeline for a book: order the photos, split them into days
and segments, cluster stops, analyze quality and duplicates, and plan the
book. The plan is stored and printed. Stop overrides and user picks stored
for the book are applied.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	addInputFlags(planCmd)

	planCmd.Flags().String("title", "", "Book title (default: derived from the dominant city)")
	planCmd.Flags().String("chapters", "auto", "Chapter mode: auto, on, off")
	planCmd.Flags().String("map", "auto", "Map mode: auto, on, off")
	planCmd.Flags().String("legend", "auto", "Legend mode: auto, full, coarse")
	planCmd.Flags().Bool("enhanced", false, "Ask for diversity-adjusted picks")
	planCmd.Flags().String("out", "", "Also write the plan JSON to this file")
	planCmd.Flags().Bool("debug", false, "Include intermediate results in JSON output")
}

func runPlan(cmd *cobra.Command, args []string) error {
	bookID := args[0]
	jsonOutput := mustGetBool(cmd, "json")

	modes := planner.Modes{
		Chapter: planner.ChapterMode(mustGetString(cmd, "chapters")),
		Map:     planner.MapMode(mustGetString(cmd, "map")),
		Legend:  planner.LegendMode(mustGetString(cmd, "legend")),
	}
	if !modes.Valid() {
		return fmt.Errorf("unknown mode in %+v", modes)
	}

	assets, title, root, err := loadInput(cmd)
	if err != nil {
		return err
	}
	if t := mustGetString(cmd, "title"); t != "" {
		title = t
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	gen, err := env.generator(root, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := pipeline.Request{Title: title, Assets: assets, Modes: modes}
	if mustGetBool(cmd, "enhanced") {
		req.PicksSource = database.PicksSourceEnhanced
	}
	if !jsonOutput {
		req.OnProgress = func(p pipeline.ProgressInfo) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", p.Stage, p.Message)
		}
	}

	res, err := gen.Generate(ctx, bookID, req)
	if err != nil {
		if errors.Is(err, pipeline.ErrSuperseded) {
			return errors.New("generation cancelled")
		}
		return err
	}

	if out := mustGetString(cmd, "out"); out != "" {
		data, err := json.MarshalIndent(res.Plan, "", "  ")
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
	}

	if jsonOutput {
		if mustGetBool(cmd, "debug") {
			return outputJSON(res)
		}
		return outputJSON(res.Plan)
	}
	printPlanSummary(res)
	return nil
}

func printPlanSummary(res *pipeline.Result) {
	plan := res.Plan
	fmt.Printf("\n%s\n", plan.Title)
	if plan.Subtitle != "" {
		fmt.Printf("%s\n", plan.Subtitle)
	}
	fmt.Printf("\n%s\n\n", plan.Blurb)

	fmt.Printf("Days:        %d\n", len(res.Debug.Days))
	fmt.Printf("Stops:       %d\n", len(res.Debug.Stops))
	fmt.Printf("Geo coverage %.0f%% -> %s", plan.GeoCoverage*100, plan.MapOrGallery)
	if plan.MapDetail != "" {
		fmt.Printf(" (%s)", plan.MapDetail)
	}
	fmt.Println()
	if plan.MapAsset != nil {
		fmt.Printf("Map:         %s\n", plan.MapAsset.Path)
	}

	if len(plan.StopLegend.Entries) > 0 {
		fmt.Println("\nLegend:")
		for _, e := range plan.StopLegend.Entries {
			fmt.Printf("  %2d. %s (%d photos)\n", e.Number, e.Label, e.TotalPhotos)
		}
		if plan.StopLegend.Overflow != "" {
			fmt.Printf("      %s\n", plan.StopLegend.Overflow)
		}
	}

	if len(plan.Chapters) > 0 {
		fmt.Println("\nChapters:")
		for _, c := range plan.Chapters {
			fmt.Printf("  days %d-%d  %s\n", c.StartDayIndex+1, c.EndDayIndex+1, c.CityLabel)
		}
	}

	fmt.Printf("\nHighlights (%s):\n", plan.PicksSource)
	for _, h := range plan.Highlights {
		fmt.Printf("  %s  %s\n", h.AssetID, h.Label)
	}
	fmt.Printf("\nGallery: %d photos, %d pages\n", len(plan.GalleryPicks), len(plan.Pages))

	if !res.Saved {
		fmt.Println("\nA newer plan was already stored; this result was not saved.")
	}
}

// outputJSON writes data as indented JSON to stdout.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
