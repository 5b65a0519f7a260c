package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/pipeline"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score photo quality and find near-duplicates",
	Long: `Measure blur, brightness, contrast and edge density of every approved or
imported photo, flag weak ones and group near-duplicates. Results are cached
by content hash, so repeated runs only analyze new photos. With --out the
manifest is written back with qualityFlags filled in.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	addInputFlags(analyzeCmd)
	analyzeCmd.Flags().String("out", "", "Write the annotated manifest to this file")
}

// curate runs quality analysis with a progress bar unless JSON output is requested.
func curate(cmd *cobra.Command) (*pipeline.CurateResult, error) {
	jsonOutput := mustGetBool(cmd, "json")

	assets, _, root, err := loadInput(cmd)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return nil, errors.New("quality analysis needs photo files: use --dir, or --manifest without --no-analysis")
	}

	env, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	defer env.close()

	gen, err := env.generator(root, nil)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var onPhoto func()
	if !jsonOutput {
		bar := progressbar.NewOptions(len(assets),
			progressbar.OptionSetDescription("Analyzing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		defer func() {
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}()
		onPhoto = func() { bar.Add(1) }
	}

	return gen.Curate(ctx, assets, onPhoto)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	res, err := curate(cmd)
	if err != nil {
		return err
	}

	if out := mustGetString(cmd, "out"); out != "" {
		if err := writeManifest(out, res.Assets); err != nil {
			return err
		}
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(res.Quality)
	}

	flagged := 0
	for _, m := range res.Quality {
		if len(m.Flags) == 0 {
			continue
		}
		flagged++
		fmt.Printf("  %-40s score %.2f  %s\n", m.PhotoID, m.QualityScore, strings.Join(m.Flags, ", "))
	}
	fmt.Printf("\nAnalyzed %d photos: %d flagged, %d duplicate groups\n",
		len(res.Quality), flagged, len(res.Duplicates))
	return nil
}

func writeManifest(path string, assets []manifest.AssetRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()
	if err := manifest.Encode(f, &manifest.File{Assets: assets}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
