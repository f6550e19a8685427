package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"volstraighten/internal/models"
	"volstraighten/pkg/config"
	"volstraighten/pkg/straighten"
	"volstraighten/pkg/visualization"
	"volstraighten/pkg/volumeio"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing the source volume slices")
	latticeFile := flag.String("lattice", "", "YAML file with lattice pairs and optional annotations")
	configFile := flag.String("config", "", "YAML configuration file (defaults are used when missing)")
	outputDir := flag.String("output", "straightened", "Directory for all outputs")
	markersDir := flag.String("markers", "", "Optional directory of marker id slices")
	maskDir := flag.String("mask", "", "Optional directory of exclusion mask slices")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: from config)")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	verbose := flag.Bool("verbose", false, "Log pipeline progress to stderr")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" || *latticeFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *verbose {
		cfg.Output.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Output.Verbose {
		straighten.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	fmt.Println("================================")
	fmt.Println("LATTICE-GUIDED VOLUME STRAIGHTENING")
	fmt.Println("================================")

	// Load inputs
	fmt.Printf("Loading slices from: %s\n", *inputDir)
	source, err := volumeio.LoadVolume(*inputDir)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	fmt.Printf("Volume: %dx%dx%d, %d channel(s)\n", source.Width, source.Height, source.Depth, source.Channels)

	l, annotations, err := volumeio.LoadLattice(*latticeFile)
	if err != nil {
		log.Fatalf("Failed to load lattice: %v", err)
	}
	fmt.Printf("Lattice: %d pairs, %d annotations\n", l.Len(), len(annotations))

	in := straighten.Input{Source: source, Lattice: l, Annotations: annotations}
	if *markersDir != "" {
		if in.Markers, err = volumeio.LoadLabels(*markersDir); err != nil {
			log.Fatalf("Failed to load markers: %v", err)
		}
	}
	if *maskDir != "" {
		if in.Mask, err = volumeio.LoadMask(*maskDir); err != nil {
			log.Fatalf("Failed to load mask: %v", err)
		}
	}

	// Run the straightening pipeline
	fmt.Printf("Straightening with %d cores...\n", cfg.Processing.NumCores)
	s := straighten.NewStraightener(cfg.Params())
	startTime := time.Now()
	res, err := s.Generate(in)
	if err != nil {
		log.Fatalf("Straightening failed (%s): %v", straighten.Classify(err), err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nStraightening completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output volume: %dx%dx%d\n\n", res.Volume.Width, res.Volume.Height, res.Volume.Depth)

	fmt.Println("Model:")
	fmt.Printf("- %s\n", res.Model)
	fmt.Printf("- Growth stopped: %s after %d rounds\n", res.Model.Growth.Outcome, res.Model.Growth.Rounds)
	for _, name := range res.Model.Growth.Uncovered {
		fmt.Printf("- Annotation not covered: %s\n", name)
	}

	m := res.Metrics
	fmt.Println("\nQuality Metrics:")
	fmt.Println("================")
	fmt.Printf("Labeled voxels: %d\n", m.LabeledVoxels)
	fmt.Printf("Conflict voxels reset: %d\n", m.ConflictVoxels)
	fmt.Printf("Mapped coverage: %.2f%%\n", m.Coverage*100)
	fmt.Printf("Centerline profile correlation: %.3f\n", m.ProfileCorrelation)
	fmt.Printf("Centerline profile RMSE: %.6f\n", m.ProfileRMSE)

	// Write outputs
	slicesPath := filepath.Join(*outputDir, "slices")
	fmt.Printf("\nSaving straightened slices to: %s\n", slicesPath)
	viewer := visualization.NewViewer(res.Volume)
	if err := viewer.SaveSliceSequence("z", slicesPath, cfg.Output.SliceFormat); err != nil {
		log.Fatalf("Failed to save slices: %v", err)
	}

	mapsPath := filepath.Join(*outputDir, "maps")
	if err := volumeio.WriteCoordinateMap(filepath.Join(mapsPath, "origin_to_straight.bin"), res.OriginToStraight); err != nil {
		log.Fatalf("Failed to save forward map: %v", err)
	}
	if err := volumeio.WriteCoordinateMap(filepath.Join(mapsPath, "straight_to_origin.bin"), res.StraightToOrigin); err != nil {
		log.Fatalf("Failed to save inverse map: %v", err)
	}
	fmt.Printf("Coordinate maps saved to: %s\n", mapsPath)

	reprojectionPath := filepath.Join(*outputDir, "reprojection.yaml")
	if err := volumeio.SaveReprojection(reprojectionPath, res); err != nil {
		log.Fatalf("Failed to save re-projection: %v", err)
	}
	fmt.Printf("Re-projected lattice saved to: %s\n", reprojectionPath)

	if cfg.Output.PlotProfile {
		if err := saveProfiles(*outputDir, source, res); err != nil {
			log.Printf("Warning: Failed to save profile plots: %v", err)
		}
	}

	if cfg.Output.SaveIntermediaryResults {
		labelsPath := filepath.Join(*outputDir, "intermediary_results", "labels")
		if err := visualization.SaveLabelSlices(res.Labels, labelsPath); err != nil {
			log.Printf("Warning: Failed to save label slices: %v", err)
		} else {
			fmt.Printf("Label volume saved to: %s\n", labelsPath)
		}
	}
}

// saveProfiles writes the per-slice geometry and intensity plots
func saveProfiles(outputDir string, source *models.Volume, res *straighten.Result) error {
	n := res.Frames.Len()
	halfWidths := make([]float64, n)
	planes := make([]float64, n)
	for j, f := range res.Frames.Frames {
		halfWidths[j] = f.HalfWidth
		planes[j] = float64(res.Planes[j])
	}

	geometryPath := filepath.Join(outputDir, "profile_geometry.png")
	err := visualization.SaveProfilePlot(geometryPath, "Frame geometry", "voxels",
		visualization.Series{Name: "half-width", Values: halfWidths},
		visualization.Series{Name: "planes", Values: planes},
	)
	if err != nil {
		return err
	}

	src, out := res.CenterlineProfiles(source)
	intensityPath := filepath.Join(outputDir, "profile_intensity.png")
	err = visualization.SaveProfilePlot(intensityPath, "Centerline intensity", "intensity",
		visualization.Series{Name: "source", Values: src},
		visualization.Series{Name: "straightened", Values: out},
	)
	if err != nil {
		return err
	}
	fmt.Printf("Profile plots saved to: %s, %s\n", geometryPath, intensityPath)
	return nil
}
