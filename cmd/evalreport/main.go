package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lueurxax/cluster-eval-board/internal/app"
	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	"github.com/lueurxax/cluster-eval-board/internal/platform/config"
	"github.com/lueurxax/cluster-eval-board/internal/process/evaluation"
)

type gate struct {
	name  string
	value domain.Score
	min   float64
}

func main() {
	slug := flag.String("slug", "", "Report slug")
	level := flag.Int("level", 0, "Cluster level (defaults to DEFAULT_LEVEL)")
	asJSON := flag.Bool("json", false, "Print the full evaluation as JSON")
	minClarity := flag.Float64("min-clarity", -1, "Fail if mean clarity is below this value (disabled if <0)")
	minTierReduced := flag.Float64("min-tier-reduced", -1, "Fail if mean reduced-space tier is below this value (disabled if <0)")
	minTierRaw := flag.Float64("min-tier-raw", -1, "Fail if mean raw-space tier is below this value (disabled if <0)")
	flag.Parse()

	if *slug == "" {
		fmt.Fprintln(os.Stderr, "-slug is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *level <= 0 {
		*level = cfg.DefaultLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, nil, &logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	eval, err := application.Service().Evaluate(ctx, *slug, *level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluation failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(eval); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode evaluation: %v\n", err)
			os.Exit(1)
		}
	} else {
		printSummary(eval)
	}

	gates := []gate{
		{name: "clarity", value: eval.Summary.Clarity, min: *minClarity},
		{name: "reduced tier", value: eval.Summary.Reduced.TierMean, min: *minTierReduced},
		{name: "raw tier", value: eval.Summary.Raw.TierMean, min: *minTierRaw},
	}

	failed := false

	for _, g := range gates {
		if msg, ok := checkGate(g); !ok {
			fmt.Fprintln(os.Stderr, msg)

			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}

// checkGate fails only for a present value below an enabled minimum.
func checkGate(g gate) (string, bool) {
	if g.min < 0 {
		return "", true
	}

	v, ok := g.value.Value()
	if !ok || v >= g.min {
		return "", true
	}

	return fmt.Sprintf("FAIL: %s %.2f < %.2f", g.name, v, g.min), false
}

func printSummary(eval *evaluation.Evaluation) {
	s := eval.Summary

	fmt.Printf("Report: %s (level %d)\n", eval.Slug, eval.Level)
	fmt.Printf("Comments: %d\n", eval.CommentNum)
	fmt.Printf("Clusters: %d\n", s.Clusters)
	fmt.Printf("Clarity: %s\n", formatScore(s.Clarity))
	fmt.Printf("Coherence: %s\n", formatScore(s.Coherence))
	fmt.Printf("Consistency: %s\n", formatScore(s.Consistency))
	fmt.Printf("Distinctiveness: %s\n", formatScore(s.Distinctiveness))
	fmt.Printf("Reduced cohesion: tier %s, mean %s, overall %s (%d clusters)\n",
		formatScore(s.Reduced.TierMean), formatScore(s.Reduced.RawMean), formatScore(s.Reduced.Overall), s.Reduced.Count)
	fmt.Printf("Raw cohesion: tier %s, mean %s, overall %s (%d clusters)\n",
		formatScore(s.Raw.TierMean), formatScore(s.Raw.RawMean), formatScore(s.Raw.Overall), s.Raw.Count)

	if len(eval.Missing) > 0 {
		fmt.Printf("Missing documents: %v\n", eval.Missing)
	}
}

func formatScore(s domain.Score) string {
	v, ok := s.Value()
	if !ok {
		return "-"
	}

	return fmt.Sprintf("%.3f", v)
}
