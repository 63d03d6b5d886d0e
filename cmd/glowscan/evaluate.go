package main

import (
	"encoding/json"
	"fmt"
	"os"

	"glow-capture/internal/capture"
	"glow-capture/internal/config"
	"glow-capture/internal/detector"
	"glow-capture/internal/factory"
	"glow-capture/internal/service"
	"glow-capture/pkg/models"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

type evaluateOptions struct {
	Detector       string
	FacefinderPath string
	PuplocPath     string
	LandmarksPath  string
	ThresholdsPath string
	Compact        bool
}

var evalOpts evaluateOptions

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <image_path>",
	Short: "Judge face position and lighting of a single still",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate(cmd, args[0], evalOpts)
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalOpts.Detector, "detector", "d", "pigo", "Landmark detector (pigo, client)")
	evaluateCmd.Flags().StringVar(&evalOpts.FacefinderPath, "facefinder", "cascade/facefinder", "Path to the pigo face cascade")
	evaluateCmd.Flags().StringVar(&evalOpts.PuplocPath, "puploc", "", "Path to the pigo pupil cascade")
	evaluateCmd.Flags().StringVarP(&evalOpts.LandmarksPath, "landmarks", "l", "", "JSON file of normalized points, for the client detector")
	evaluateCmd.Flags().StringVarP(&evalOpts.ThresholdsPath, "thresholds", "t", "", "YAML file overriding capture thresholds")
	evaluateCmd.Flags().BoolVar(&evalOpts.Compact, "compact", false, "Print JSON on one line")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, path string, opts evaluateOptions) error {
	kind, err := detector.ParseKind(opts.Detector)
	if err != nil {
		return err
	}

	monitorOpts := capture.DefaultMonitorOptions()
	if opts.ThresholdsPath != "" {
		th, err := config.LoadThresholds(opts.ThresholdsPath)
		if err != nil {
			return err
		}
		monitorOpts = monitorOpts.WithThresholds(th)
	}

	landmarks, err := readLandmarks(opts.LandmarksPath)
	if err != nil {
		return err
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	pigoOpts := detector.DefaultPigoOptions()
	pigoOpts.FacefinderPath = opts.FacefinderPath
	pigoOpts.PuplocPath = opts.PuplocPath

	svc := service.NewCaptureService(service.Options{
		Monitor:   monitorOpts,
		Detectors: factory.NewDetectorFactory(kind, pigoOpts),
	})
	defer svc.Close(cmd.Context())

	result, err := svc.Evaluate(cmd.Context(), img, landmarks)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !opts.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func readLandmarks(path string) (capture.LandmarkSet, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read landmarks: %w", err)
	}
	var points []models.Landmark
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to parse landmarks: %w", err)
	}
	set := make(capture.LandmarkSet, 0, len(points))
	for _, p := range points {
		set = append(set, capture.Point{X: p.X, Y: p.Y})
	}
	return set, nil
}
