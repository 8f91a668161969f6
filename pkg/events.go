package dl1

import "gonum.org/v1/gonum/unit"

// EventIndex identifies an event inside an observation block.
type EventIndex struct {
	ObsID   int32
	EventID int64
}

type TelescopeTrigger struct {
	Time float64
}

type Trigger struct {
	Time float64
	// Telescope ids decoded from the trigger pattern, before any
	// allowed-telescopes filtering.
	TelsWithTrigger []uint16
	Tel             map[uint16]TelescopeTrigger
}

type ArrayPointing struct {
	Azimuth  unit.Angle
	Altitude unit.Angle
	RA       unit.Angle
	Dec      unit.Angle
}

type TelescopePointing struct {
	Azimuth  unit.Angle
	Altitude unit.Angle
}

type Pointing struct {
	Array ArrayPointing
	Tel   map[uint16]TelescopePointing
}

type HillasParameters struct {
	Intensity float64
	X         float64
	Y         float64
	R         float64
	Phi       float64
	Length    float64
	Width     float64
	Psi       float64
	Skewness  float64
	Kurtosis  float64
}

type TimingParameters struct {
	Slope     float64
	Intercept float64
	Deviation float64
}

type LeakageParameters struct {
	PixelsWidth1    float64
	PixelsWidth2    float64
	IntensityWidth1 float64
	IntensityWidth2 float64
}

type ConcentrationParameters struct {
	Cog   float64
	Core  float64
	Pixel float64
}

type MorphologyParameters struct {
	NumPixels        int32
	NumIslands       int32
	NumSmallIslands  int32
	NumMediumIslands int32
	NumLargeIslands  int32
}

type StatisticsParameters struct {
	Max      float64
	Min      float64
	Mean     float64
	Std      float64
	Skewness float64
	Kurtosis float64
}

// ParameterBundle holds the fixed set of image parametrizations stored per
// telescope event.
type ParameterBundle struct {
	Hillas        HillasParameters
	Timing        TimingParameters
	Leakage       LeakageParameters
	Concentration ConcentrationParameters
	Morphology    MorphologyParameters
	Intensity     StatisticsParameters
	PeakTime      StatisticsParameters
}

// TelescopeDL1 holds the per-telescope payload of one event. Image slices
// are nil when the file carries no image data for the telescope.
type TelescopeDL1 struct {
	Image      []float32
	PeakTime   []float32
	ImageMask  []bool
	Parameters *ParameterBundle
}

type SimulatedShower struct {
	Energy    float64
	Alt       unit.Angle
	Az        unit.Angle
	CoreX     float64
	CoreY     float64
	HFirstInt float64
	XMax      float64
	PrimaryID int64
}

// RunHeader is the simulation run configuration of one observation block.
type RunHeader struct {
	ObsID          int32
	CorsikaVersion int32
	SimtelVersion  int32
	EnergyRangeMin float64
	EnergyRangeMax float64
	SpectralIndex  float64
	NumShowers     int64
	ShowerReuse    int32
	MaxAlt         unit.Angle
	MinAlt         unit.Angle
	MaxAz          unit.Angle
	MinAz          unit.Angle
	ProdSiteAlt    float64
	Atmosphere     int32
}

// Event is one assembled array event. A new value is returned for every
// iteration step, so callers may keep references to previous events.
type Event struct {
	SequenceIndex int
	Index         EventIndex
	Trigger       Trigger
	Pointing      Pointing
	Tel           map[uint16]TelescopeDL1
	Shower        *SimulatedShower
	RunHeader     *RunHeader
}
