package app

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/astrokit/pipeplan/internal/taskconfig"
)

// TaskDefinition describes one pipeline task to the resolution layer: its
// name (which selects auto-loaded override files), a factory for its
// default configuration, and whether an empty --id list means "process
// everything" for this task.
type TaskDefinition struct {
	Name         string
	Doc          string
	NewConfig    func() *taskconfig.Config
	AllowEmptyID bool
}

// ProcessExposure is the built-in exposure-processing task definition.
func ProcessExposure() TaskDefinition {
	return TaskDefinition{
		Name:      "processExposure",
		Doc:       "Calibrate and characterize a single exposure.",
		NewConfig: newProcessExposureConfig,
	}
}

func newProcessExposureConfig() *taskconfig.Config {
	background := taskconfig.NewStruct("background estimation").
		Add("binSize", taskconfig.NewLeaf("superpixel bin size in pixels", cty.Number, cty.NumberIntVal(128))).
		Add("algorithm", taskconfig.NewLeaf("interpolation algorithm", cty.String, cty.StringVal("natural_spline")))

	calibration := taskconfig.NewRetargetable("photometric calibration subtask", "standard",
		map[string]taskconfig.Factory{
			"standard": func() *taskconfig.Struct {
				return taskconfig.NewStruct("iterative calibration").
					Add("iterations", taskconfig.NewLeaf("maximum fit iterations", cty.Number, cty.NumberIntVal(20))).
					Add("sigmaClip", taskconfig.NewLeaf("clipping threshold in sigma", cty.Number, cty.NumberFloatVal(3.0)))
			},
			"fast": func() *taskconfig.Struct {
				return taskconfig.NewStruct("single-pass calibration").
					Add("iterations", taskconfig.NewLeaf("maximum fit iterations", cty.Number, cty.NumberIntVal(1)))
			},
		})

	starSelector := taskconfig.NewRegistry("star selector for PSF measurement", "objectSize",
		map[string]taskconfig.Factory{
			"objectSize": func() *taskconfig.Struct {
				return taskconfig.NewStruct("size-based selector").
					Add("widthMin", taskconfig.NewLeaf("minimum PSF width in pixels", cty.Number, cty.NumberFloatVal(0.9))).
					Add("widthMax", taskconfig.NewLeaf("maximum PSF width in pixels", cty.Number, cty.NumberFloatVal(10.0)))
			},
			"flux": func() *taskconfig.Struct {
				return taskconfig.NewStruct("flux-based selector").
					Add("fluxMin", taskconfig.NewLeaf("minimum instrumental flux", cty.Number, cty.NumberFloatVal(12500.0)))
			},
		})

	root := taskconfig.NewStruct("exposure processing").
		Add("doCalibrate", taskconfig.NewLeaf("perform photometric calibration", cty.Bool, cty.True)).
		Add("snrThreshold", taskconfig.NewLeaf("detection threshold in signal-to-noise", cty.Number, cty.NumberFloatVal(5.0))).
		Add("maskPlanes", taskconfig.NewLeaf("mask planes to ignore during detection", cty.List(cty.String),
			cty.ListVal([]cty.Value{cty.StringVal("BAD"), cty.StringVal("SAT"), cty.StringVal("EDGE")}))).
		Add("apertures", taskconfig.NewLeaf("photometry aperture radii in pixels", cty.List(cty.Number),
			cty.ListVal([]cty.Value{cty.NumberIntVal(3), cty.NumberIntVal(6), cty.NumberIntVal(12)}))).
		Add("background", background).
		Add("calibration", calibration).
		Add("starSelector", starSelector)

	return taskconfig.New(root)
}
