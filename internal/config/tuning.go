package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the analysis tuning parameters. The schema matches the
// /api/config endpoint so the same JSON can be used at startup and for
// display. Omitted fields fall back to the defaults in the Get* methods.
type TuningConfig struct {
	// Sampling
	SampleStep *string `json:"sample_step,omitempty"` // duration string like "66ms"

	// Motion detector
	BlurKernel      *int     `json:"blur_kernel,omitempty"`
	DiffThreshold   *float64 `json:"diff_threshold,omitempty"`
	MorphKernel     *int     `json:"morph_kernel,omitempty"`
	MinContourArea  *float64 `json:"min_contour_area,omitempty"`
	MaxContourArea  *float64 `json:"max_contour_area,omitempty"`
	OutOfLaneWeight *float64 `json:"out_of_lane_weight,omitempty"`

	// Lane geometry
	LaneWidthIn *float64 `json:"lane_width_in,omitempty"`
	Boards      *int     `json:"boards,omitempty"`
	ArrowsFt    *float64 `json:"arrows_ft,omitempty"`

	// Metric estimation
	MinRawPoints     *int     `json:"min_raw_points,omitempty"`
	MinLanePoints    *int     `json:"min_lane_points,omitempty"`
	MinSpeedPoints   *int     `json:"min_speed_points,omitempty"`
	SpeedWindowMinFt *float64 `json:"speed_window_min_ft,omitempty"`
	SpeedWindowMaxFt *float64 `json:"speed_window_max_ft,omitempty"`

	// Calibration defaults used when a request leaves them unset
	DefaultFarFt   *float64 `json:"default_far_ft,omitempty"`
	DefaultBreakFt *float64 `json:"default_break_ft,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		SampleStep:       ptrString(empty.GetSampleStep().String()),
		BlurKernel:       ptrInt(empty.GetBlurKernel()),
		DiffThreshold:    ptrFloat64(empty.GetDiffThreshold()),
		MorphKernel:      ptrInt(empty.GetMorphKernel()),
		MinContourArea:   ptrFloat64(empty.GetMinContourArea()),
		MaxContourArea:   ptrFloat64(empty.GetMaxContourArea()),
		OutOfLaneWeight:  ptrFloat64(empty.GetOutOfLaneWeight()),
		LaneWidthIn:      ptrFloat64(empty.GetLaneWidthIn()),
		Boards:           ptrInt(empty.GetBoards()),
		ArrowsFt:         ptrFloat64(empty.GetArrowsFt()),
		MinRawPoints:     ptrInt(empty.GetMinRawPoints()),
		MinLanePoints:    ptrInt(empty.GetMinLanePoints()),
		MinSpeedPoints:   ptrInt(empty.GetMinSpeedPoints()),
		SpeedWindowMinFt: ptrFloat64(empty.GetSpeedWindowMinFt()),
		SpeedWindowMaxFt: ptrFloat64(empty.GetSpeedWindowMaxFt()),
		DefaultFarFt:     ptrFloat64(empty.GetDefaultFarFt()),
		DefaultBreakFt:   ptrFloat64(empty.GetDefaultBreakFt()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/lanetrack
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SampleStep != nil && *c.SampleStep != "" {
		d, err := time.ParseDuration(*c.SampleStep)
		if err != nil {
			return fmt.Errorf("invalid sample_step '%s': %w", *c.SampleStep, err)
		}
		if d <= 0 {
			return fmt.Errorf("sample_step must be positive, got %s", d)
		}
	}

	for name, k := range map[string]*int{"blur_kernel": c.BlurKernel, "morph_kernel": c.MorphKernel} {
		if k != nil && (*k < 1 || *k%2 == 0) {
			return fmt.Errorf("%s must be a positive odd number, got %d", name, *k)
		}
	}

	if c.DiffThreshold != nil && (*c.DiffThreshold < 0 || *c.DiffThreshold > 255) {
		return fmt.Errorf("diff_threshold must be between 0 and 255, got %f", *c.DiffThreshold)
	}
	if c.GetMinContourArea() < 0 || c.GetMaxContourArea() <= c.GetMinContourArea() {
		return fmt.Errorf("contour area bounds must satisfy 0 <= min < max, got [%f, %f]",
			c.GetMinContourArea(), c.GetMaxContourArea())
	}
	if c.OutOfLaneWeight != nil && (*c.OutOfLaneWeight < 0 || *c.OutOfLaneWeight > 1) {
		return fmt.Errorf("out_of_lane_weight must be between 0 and 1, got %f", *c.OutOfLaneWeight)
	}

	if c.LaneWidthIn != nil && *c.LaneWidthIn <= 0 {
		return fmt.Errorf("lane_width_in must be positive, got %f", *c.LaneWidthIn)
	}
	if c.Boards != nil && *c.Boards < 1 {
		return fmt.Errorf("boards must be at least 1, got %d", *c.Boards)
	}

	for name, n := range map[string]*int{
		"min_raw_points":   c.MinRawPoints,
		"min_lane_points":  c.MinLanePoints,
		"min_speed_points": c.MinSpeedPoints,
	} {
		if n != nil && *n < 2 {
			return fmt.Errorf("%s must be at least 2, got %d", name, *n)
		}
	}

	if c.GetSpeedWindowMinFt() < 0 || c.GetSpeedWindowMaxFt() <= c.GetSpeedWindowMinFt() {
		return fmt.Errorf("speed window must satisfy 0 <= min < max, got [%f, %f] ft",
			c.GetSpeedWindowMinFt(), c.GetSpeedWindowMaxFt())
	}

	for name, v := range map[string]*float64{
		"arrows_ft":        c.ArrowsFt,
		"default_far_ft":   c.DefaultFarFt,
		"default_break_ft": c.DefaultBreakFt,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	return nil
}

// GetSampleStep parses and returns the SampleStep as a time.Duration.
func (c *TuningConfig) GetSampleStep() time.Duration {
	if c.SampleStep == nil || *c.SampleStep == "" {
		return 66 * time.Millisecond // ~15 fps
	}
	d, err := time.ParseDuration(*c.SampleStep)
	if err != nil || d <= 0 {
		return 66 * time.Millisecond
	}
	return d
}

// GetBlurKernel returns the blur_kernel value or the default.
func (c *TuningConfig) GetBlurKernel() int {
	if c.BlurKernel == nil {
		return 7
	}
	return *c.BlurKernel
}

// GetDiffThreshold returns the diff_threshold value or the default.
func (c *TuningConfig) GetDiffThreshold() float64 {
	if c.DiffThreshold == nil {
		return 22
	}
	return *c.DiffThreshold
}

// GetMorphKernel returns the morph_kernel value or the default.
func (c *TuningConfig) GetMorphKernel() int {
	if c.MorphKernel == nil {
		return 7
	}
	return *c.MorphKernel
}

// GetMinContourArea returns the min_contour_area value (px²) or the default.
func (c *TuningConfig) GetMinContourArea() float64 {
	if c.MinContourArea == nil {
		return 80
	}
	return *c.MinContourArea
}

// GetMaxContourArea returns the max_contour_area value (px²) or the default.
func (c *TuningConfig) GetMaxContourArea() float64 {
	if c.MaxContourArea == nil {
		return 25000
	}
	return *c.MaxContourArea
}

// GetOutOfLaneWeight returns the out_of_lane_weight value or the default.
func (c *TuningConfig) GetOutOfLaneWeight() float64 {
	if c.OutOfLaneWeight == nil {
		return 0.05
	}
	return *c.OutOfLaneWeight
}

// GetLaneWidthIn returns the lane_width_in value or the default.
func (c *TuningConfig) GetLaneWidthIn() float64 {
	if c.LaneWidthIn == nil {
		return 41.5
	}
	return *c.LaneWidthIn
}

// GetBoards returns the boards value or the default.
func (c *TuningConfig) GetBoards() int {
	if c.Boards == nil {
		return 39
	}
	return *c.Boards
}

// GetArrowsFt returns the arrows_ft value or the default.
func (c *TuningConfig) GetArrowsFt() float64 {
	if c.ArrowsFt == nil {
		return 15
	}
	return *c.ArrowsFt
}

// GetMinRawPoints returns the min_raw_points value or the default.
func (c *TuningConfig) GetMinRawPoints() int {
	if c.MinRawPoints == nil {
		return 8
	}
	return *c.MinRawPoints
}

// GetMinLanePoints returns the min_lane_points value or the default.
func (c *TuningConfig) GetMinLanePoints() int {
	if c.MinLanePoints == nil {
		return 8
	}
	return *c.MinLanePoints
}

// GetMinSpeedPoints returns the min_speed_points value or the default.
func (c *TuningConfig) GetMinSpeedPoints() int {
	if c.MinSpeedPoints == nil {
		return 6
	}
	return *c.MinSpeedPoints
}

// GetSpeedWindowMinFt returns the speed_window_min_ft value or the default.
func (c *TuningConfig) GetSpeedWindowMinFt() float64 {
	if c.SpeedWindowMinFt == nil {
		return 5
	}
	return *c.SpeedWindowMinFt
}

// GetSpeedWindowMaxFt returns the speed_window_max_ft value or the default.
func (c *TuningConfig) GetSpeedWindowMaxFt() float64 {
	if c.SpeedWindowMaxFt == nil {
		return 45
	}
	return *c.SpeedWindowMaxFt
}

// GetDefaultFarFt returns the default_far_ft value or the default.
func (c *TuningConfig) GetDefaultFarFt() float64 {
	if c.DefaultFarFt == nil {
		return 50
	}
	return *c.DefaultFarFt
}

// GetDefaultBreakFt returns the default_break_ft value or the default.
func (c *TuningConfig) GetDefaultBreakFt() float64 {
	if c.DefaultBreakFt == nil {
		return 40
	}
	return *c.DefaultBreakFt
}
