package dl1

type DataLevel int

const (
	DL1Images DataLevel = iota
	DL1Parameters
)

func (d DataLevel) String() string {
	switch d {
	case DL1Images:
		return "images"
	case DL1Parameters:
		return "parameters"
	default:
		return "Unknown"
	}
}

// Capabilities describes what a file actually contains. It is resolved once
// when the file is opened and drives every later access, so optional
// sub-trees are never probed again during iteration.
type Capabilities struct {
	Simulation   bool
	SimulatedDL1 bool
	Levels       []DataLevel
}

func (c Capabilities) HasLevel(level DataLevel) bool {
	for _, l := range c.Levels {
		if l == level {
			return true
		}
	}
	return false
}

func probeCapabilities(acc *fileAccessor) Capabilities {
	caps := Capabilities{
		Simulation:   acc.nodeExists(simulationNode),
		SimulatedDL1: acc.nodeExists(simImagesGroupNode),
	}
	if acc.nodeExists(imagesGroupNode) {
		caps.Levels = append(caps.Levels, DL1Images)
	}
	if acc.nodeExists(parametersGroupNode) {
		caps.Levels = append(caps.Levels, DL1Parameters)
	}
	if len(caps.Levels) == 0 {
		logger.Info("no image or parameter data found, events will carry trigger data only", "capabilities")
	}
	return caps
}
