package motion

import "github.com/banshee-data/lane.report/internal/config"

// Config holds the frame-differencing and contour-scoring parameters.
type Config struct {
	BlurKernel      int     // Gaussian kernel size (odd, px)
	DiffThreshold   float64 // Intensity delta (0-255) above which a pixel is moving
	MorphKernel     int     // Elliptical structuring element size (odd, px)
	MinArea         float64 // Smallest accepted contour area (px²)
	MaxArea         float64 // Largest accepted contour area (px²)
	OutOfLaneWeight float64 // Score multiplier for candidates outside the lane quad
}

// DefaultConfig returns the built-in detector parameters.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		BlurKernel:      cfg.GetBlurKernel(),
		DiffThreshold:   cfg.GetDiffThreshold(),
		MorphKernel:     cfg.GetMorphKernel(),
		MinArea:         cfg.GetMinContourArea(),
		MaxArea:         cfg.GetMaxContourArea(),
		OutOfLaneWeight: cfg.GetOutOfLaneWeight(),
	}
}
