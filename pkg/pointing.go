package dl1

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/unit"
)

// Monitoring tables are small compared to the event stream, so the columns
// are cached in memory when the file is opened and every lookup scans the
// full column. Lookups keep no state between calls: monitoring timestamps
// need not be sorted and event timestamps need not be monotonic.

type arrayPointingTable struct {
	times []float64
	az    []float64
	alt   []float64
	ra    []float64
	dec   []float64
}

func newArrayPointingTable(rows []ArrayPointingHDF5) *arrayPointingTable {
	table := &arrayPointingTable{
		times: make([]float64, len(rows)),
		az:    make([]float64, len(rows)),
		alt:   make([]float64, len(rows)),
		ra:    make([]float64, len(rows)),
		dec:   make([]float64, len(rows)),
	}
	for i, row := range rows {
		table.times[i] = row.time
		table.az[i] = row.array_azimuth
		table.alt[i] = row.array_altitude
		table.ra[i] = row.array_ra
		table.dec[i] = row.array_dec
	}
	return table
}

func (t *arrayPointingTable) sample(timestamp float64) (ArrayPointing, error) {
	i, err := nearestIndex(t.times, timestamp)
	if err != nil {
		return ArrayPointing{}, &ErrSchema{Node: arrayPointingNode, Err: err}
	}
	return ArrayPointing{
		Azimuth:  unit.Angle(t.az[i]),
		Altitude: unit.Angle(t.alt[i]),
		RA:       unit.Angle(t.ra[i]),
		Dec:      unit.Angle(t.dec[i]),
	}, nil
}

type telPointingTable struct {
	node  string
	times []float64
	az    []float64
	alt   []float64
}

func newTelPointingTable(node string, rows []TelPointingHDF5) *telPointingTable {
	table := &telPointingTable{
		node:  node,
		times: make([]float64, len(rows)),
		az:    make([]float64, len(rows)),
		alt:   make([]float64, len(rows)),
	}
	for i, row := range rows {
		table.times[i] = row.telescopetrigger_time
		table.az[i] = row.azimuth
		table.alt[i] = row.altitude
	}
	return table
}

func (t *telPointingTable) sample(timestamp float64) (TelescopePointing, error) {
	i, err := nearestIndex(t.times, timestamp)
	if err != nil {
		return TelescopePointing{}, &ErrSchema{Node: t.node, Err: err}
	}
	return TelescopePointing{
		Azimuth:  unit.Angle(t.az[i]),
		Altitude: unit.Angle(t.alt[i]),
	}, nil
}

var errEmptyPointing = errors.New("empty pointing table")

// nearestIndex returns the position of the sample closest in time to the
// given timestamp. Ties resolve to the earliest sample.
func nearestIndex(times []float64, timestamp float64) (int, error) {
	if len(times) == 0 {
		return 0, errEmptyPointing
	}
	diffs := make([]float64, len(times))
	for i, t := range times {
		diffs[i] = math.Abs(t - timestamp)
	}
	return floats.MinIdx(diffs), nil
}

// loadTelPointing builds one pointing table per telescope node found under
// the monitoring group.
func loadTelPointing(acc *fileAccessor) (map[uint16]*telPointingTable, error) {
	tables := make(map[uint16]*telPointingTable)
	if !acc.nodeExists(telPointingGroupNode) {
		return tables, nil
	}

	nodes, err := discoverTelescopeNodes(acc, telPointingGroupNode)
	if err != nil {
		return nil, &ErrSchema{Node: telPointingGroupNode, Err: err}
	}
	for tel, node := range nodes {
		rows, err := readTable[TelPointingHDF5](acc, node)
		if err != nil {
			return nil, &ErrSchema{Node: node, Err: err}
		}
		tables[tel] = newTelPointingTable(node, rows)
	}
	return tables, nil
}
