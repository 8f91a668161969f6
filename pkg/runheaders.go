package dl1

import (
	"fmt"

	"gonum.org/v1/gonum/unit"
)

// loadRunHeaders reads the simulation run configuration into a registry
// keyed by observation id. A file without the run-config table yields an
// empty registry.
func loadRunHeaders(acc *fileAccessor, verbosity int) (map[int32]RunHeader, error) {
	headers := make(map[int32]RunHeader)
	if !acc.nodeExists(runConfigNode) {
		return headers, nil
	}

	rows, err := readTable[RunConfigHDF5](acc, runConfigNode)
	if err != nil {
		return nil, &ErrSchema{Node: runConfigNode, Err: err}
	}
	for _, row := range rows {
		headers[row.obs_id] = toRunHeader(row)
	}
	if verbosity > 0 {
		message := fmt.Sprintf("Loaded %d simulation run headers", len(headers))
		logger.Info(message, "runheaders")
	}
	return headers, nil
}

func toRunHeader(row RunConfigHDF5) RunHeader {
	return RunHeader{
		ObsID:          row.obs_id,
		CorsikaVersion: row.corsika_version,
		SimtelVersion:  row.simtel_version,
		EnergyRangeMin: row.energy_range_min,
		EnergyRangeMax: row.energy_range_max,
		SpectralIndex:  row.spectral_index,
		NumShowers:     row.num_showers,
		ShowerReuse:    row.shower_reuse,
		MaxAlt:         unit.Angle(row.max_alt),
		MinAlt:         unit.Angle(row.min_alt),
		MaxAz:          unit.Angle(row.max_az),
		MinAz:          unit.Angle(row.min_az),
		ProdSiteAlt:    row.prod_site_alt,
		Atmosphere:     row.atmosphere,
	}
}
