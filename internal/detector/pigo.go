package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"glow-capture/internal/capture"
)

// perturbFact is the number of perturbations used for pupil localization
const perturbFact = 63

var errNotLoaded = errors.New("pigo cascades not loaded")

// PigoOptions configures the pigo face finder
type PigoOptions struct {
	FacefinderPath string
	// PuplocPath is optional; without it only the face box is reported
	PuplocPath string

	// MaxWidth bounds the width frames are scaled to before detection
	MaxWidth int

	MinSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

// DefaultPigoOptions returns settings tuned for a selfie at arm's length
func DefaultPigoOptions() PigoOptions {
	return PigoOptions{
		FacefinderPath: "cascade/facefinder",
		PuplocPath:     "cascade/puploc",
		MaxWidth:       640,
		MinSize:        60,
		ShiftFactor:    0.1,
		ScaleFactor:    1.1,
		IoUThreshold:   0.2,
		MinQuality:     5.0,
	}
}

// PigoDetector is a pure-Go capture.Detector. It reports the four corners of
// the best face box plus both pupils when the pupil cascade is available.
type PigoDetector struct {
	opts PigoOptions

	mu     sync.RWMutex
	face   *pigo.Pigo
	puploc *pigo.PuplocCascade
}

// NewPigoDetector creates a detector; cascades are read by Init
func NewPigoDetector(opts PigoOptions) *PigoDetector {
	return &PigoDetector{opts: opts}
}

// Init reads and unpacks the cascade files
func (d *PigoDetector) Init(ctx context.Context) error {
	cascade, err := readCascade(ctx, d.opts.FacefinderPath)
	if err != nil {
		return fmt.Errorf("error reading the facefinder cascade file: %w", err)
	}
	face, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return fmt.Errorf("error unpacking the facefinder cascade file: %w", err)
	}

	var puploc *pigo.PuplocCascade
	if d.opts.PuplocPath != "" {
		data, err := readCascade(ctx, d.opts.PuplocPath)
		if err != nil {
			return fmt.Errorf("error reading the puploc cascade file: %w", err)
		}
		puploc, err = pigo.NewPuplocCascade().UnpackCascade(data)
		if err != nil {
			return fmt.Errorf("error unpacking the puploc cascade file: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.face, d.puploc = face, puploc
	d.mu.Unlock()
	return nil
}

func readCascade(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Detect runs the face finder over one frame
func (d *PigoDetector) Detect(frame capture.Frame, _ int64) ([]capture.Point, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.face == nil {
		return nil, errNotLoaded
	}
	if frame.Image == nil {
		return nil, nil
	}

	src := d.prepare(frame.Image)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	params := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}
	cp := pigo.CascadeParams{
		MinSize:     d.opts.MinSize,
		MaxSize:     max(rows, cols),
		ShiftFactor: d.opts.ShiftFactor,
		ScaleFactor: d.opts.ScaleFactor,
		ImageParams: params,
	}

	dets := d.face.RunCascade(cp, 0.0)
	dets = d.face.ClusterDetections(dets, d.opts.IoUThreshold)

	best, ok := bestDetection(dets, d.opts.MinQuality)
	if !ok {
		return nil, nil
	}

	points := faceCorners(best, cols, rows)
	if d.puploc != nil {
		for _, eye := range []*pigo.Puploc{leftPupil(best), rightPupil(best)} {
			found := d.puploc.RunDetector(*eye, params, 0.0, false)
			if found != nil && found.Row > 0 && found.Col > 0 {
				points = append(points, normalize(found.Col, found.Row, cols, rows))
			}
		}
	}
	return points, nil
}

// prepare returns a zero-origin copy of img no wider than MaxWidth
func (d *PigoDetector) prepare(img image.Image) image.Image {
	if d.opts.MaxWidth > 0 && img.Bounds().Dx() > d.opts.MaxWidth {
		return imaging.Resize(img, d.opts.MaxWidth, 0, imaging.Linear)
	}
	return imaging.Clone(img)
}

// Close drops the unpacked cascades
func (d *PigoDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.face, d.puploc = nil, nil
	return nil
}

func bestDetection(dets []pigo.Detection, minQ float32) (pigo.Detection, bool) {
	var best pigo.Detection
	found := false
	for _, det := range dets {
		if det.Q < minQ {
			continue
		}
		if !found || det.Q > best.Q {
			best, found = det, true
		}
	}
	return best, found
}

// faceAspect is the width/height of a face inside pigo's square box, in pixels
const faceAspect = 0.75

// faceCorners converts a square detection into the four normalized corners
// of a face-shaped box. The box is narrowed in pixel space so its normalized
// aspect ratio reflects the face, not the frame.
func faceCorners(det pigo.Detection, cols, rows int) []capture.Point {
	halfH := float64(det.Scale) / 2
	halfW := halfH * faceAspect
	row, col := float64(det.Row), float64(det.Col)

	top, bottom := row-halfH, row+halfH
	left, right := col-halfW, col+halfW

	return []capture.Point{
		normalizeF(left, top, cols, rows),
		normalizeF(right, top, cols, rows),
		normalizeF(right, bottom, cols, rows),
		normalizeF(left, bottom, cols, rows),
	}
}

func leftPupil(det pigo.Detection) *pigo.Puploc {
	return &pigo.Puploc{
		Row:      det.Row - int(0.085*float32(det.Scale)),
		Col:      det.Col - int(0.185*float32(det.Scale)),
		Scale:    float32(det.Scale) * 0.4,
		Perturbs: perturbFact,
	}
}

func rightPupil(det pigo.Detection) *pigo.Puploc {
	return &pigo.Puploc{
		Row:      det.Row - int(0.085*float32(det.Scale)),
		Col:      det.Col + int(0.185*float32(det.Scale)),
		Scale:    float32(det.Scale) * 0.4,
		Perturbs: perturbFact,
	}
}

func normalize(col, row, cols, rows int) capture.Point {
	return normalizeF(float64(col), float64(row), cols, rows)
}

func normalizeF(col, row float64, cols, rows int) capture.Point {
	return capture.Point{
		X: clamp01(col / float64(cols)),
		Y: clamp01(row / float64(rows)),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
