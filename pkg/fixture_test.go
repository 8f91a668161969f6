package dl1

import (
	"path"
	"slices"
	"strings"
	"testing"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// The fixture writer builds small stage-1 files for the tests below. The
// shipped library only reads, so the write path lives here, using the same
// table and 2-D dataset mechanics as the production pipeline that creates
// these files.

type fixtureWriter struct {
	t      *testing.T
	file   *hdf5.File
	groups map[string]*hdf5.Group
}

func newFixtureWriter(t *testing.T, filename string) *fixtureWriter {
	t.Helper()
	hdf5.SetStringLength(STRLEN)
	file, err := hdf5.CreateFile(filename, hdf5.F_ACC_TRUNC)
	if err != nil {
		t.Fatalf("creating fixture file %s: %v", filename, err)
	}
	return &fixtureWriter{t: t, file: file, groups: make(map[string]*hdf5.Group)}
}

func (w *fixtureWriter) close() {
	w.t.Helper()
	for _, group := range w.groups {
		if err := group.Close(); err != nil {
			w.t.Fatalf("closing fixture group: %v", err)
		}
	}
	if err := w.file.Close(); err != nil {
		w.t.Fatalf("closing fixture file: %v", err)
	}
}

// fixtureLocation is where a dataset can be created: the file root or a group.
type fixtureLocation interface {
	CreateDatasetWith(name string, dtype *hdf5.Datatype, dspace *hdf5.Dataspace, dcpl *hdf5.PropList) (*hdf5.Dataset, error)
}

func (w *fixtureWriter) location(groupPath string) fixtureLocation {
	if groupPath == "/" {
		return w.file
	}
	return w.group(groupPath)
}

// group creates intermediate groups on demand, one level at a time.
func (w *fixtureWriter) group(nodePath string) *hdf5.Group {
	w.t.Helper()
	if group, ok := w.groups[nodePath]; ok {
		return group
	}

	var group *hdf5.Group
	var err error
	parent := path.Dir(nodePath)
	if parent == "/" {
		group, err = w.file.CreateGroup(strings.TrimPrefix(nodePath, "/"))
	} else {
		group, err = w.group(parent).CreateGroup(path.Base(nodePath))
	}
	if err != nil {
		w.t.Fatalf("creating fixture group %s: %v", nodePath, err)
	}
	w.groups[nodePath] = group
	return group
}

func writeFixtureTable[T any](w *fixtureWriter, groupPath string, name string, rows []T) {
	w.t.Helper()

	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		w.t.Fatalf("creating fixture dataspace for %s: %v", name, err)
	}
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		w.t.Fatalf("creating fixture property list for %s: %v", name, err)
	}
	plist.SetChunk([]uint{64})
	plist.SetDeflate(1)

	var zero T
	dtype, err := hdf5.NewDatatypeFromValue(zero)
	if err != nil {
		w.t.Fatalf("creating fixture datatype for %s: %v", name, err)
	}
	dset, err := w.location(groupPath).CreateDatasetWith(name, dtype, space, plist)
	if err != nil {
		w.t.Fatalf("creating fixture table %s: %v", name, err)
	}

	if len(rows) > 0 {
		length := uint(len(rows))
		memspace, err := hdf5.CreateSimpleDataspace([]uint{length}, nil)
		if err != nil {
			w.t.Fatalf("writing fixture table %s: %v", name, err)
		}
		dset.Resize([]uint{length})
		filespace := dset.Space()
		filespace.SelectHyperslab([]uint{0}, nil, []uint{length}, nil)
		if err := dset.WriteSubset(&rows, memspace, filespace); err != nil {
			w.t.Fatalf("writing fixture table %s: %v", name, err)
		}
		memspace.Close()
		filespace.Close()
	}
	if err := dset.Close(); err != nil {
		w.t.Fatalf("closing fixture table %s: %v", name, err)
	}
}

func writeFixtureMatrix[T any](w *fixtureWriter, groupPath string, name string, width int, rows [][]T) {
	w.t.Helper()
	if width <= 0 {
		w.t.Fatalf("fixture dataset %s needs a positive width, got %d", name, width)
	}

	dims := []uint{0, uint(width)}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims), uint(width)}
	space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		w.t.Fatalf("creating fixture dataspace for %s: %v", name, err)
	}
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		w.t.Fatalf("creating fixture property list for %s: %v", name, err)
	}
	plist.SetChunk([]uint{1, uint(width)})
	plist.SetDeflate(1)

	var zero T
	dtype, err := hdf5.NewDatatypeFromValue(zero)
	if err != nil {
		w.t.Fatalf("creating fixture datatype for %s: %v", name, err)
	}
	dset, err := w.location(groupPath).CreateDatasetWith(name, dtype, space, plist)
	if err != nil {
		w.t.Fatalf("creating fixture dataset %s: %v", name, err)
	}

	for i, row := range rows {
		if len(row) != width {
			w.t.Fatalf("fixture row %d of %s has %d values, want %d", i, name, len(row), width)
		}
		memspace, err := hdf5.CreateSimpleDataspace([]uint{1, uint(width)}, nil)
		if err != nil {
			w.t.Fatalf("writing fixture dataset %s: %v", name, err)
		}
		dset.Resize([]uint{uint(i) + 1, uint(width)})
		filespace := dset.Space()
		filespace.SelectHyperslab([]uint{uint(i), 0}, nil, []uint{1, uint(width)}, nil)
		if err := dset.WriteSubset(&row, memspace, filespace); err != nil {
			w.t.Fatalf("writing fixture dataset %s: %v", name, err)
		}
		memspace.Close()
		filespace.Close()
	}
	if err := dset.Close(); err != nil {
		w.t.Fatalf("closing fixture dataset %s: %v", name, err)
	}
}

type fixtureImageRow struct {
	image    []float32
	peakTime []float32
	mask     []uint8
}

type fixtureSpec struct {
	metadata      map[string]string
	runHeaders    []RunConfigHDF5
	layout        []LayoutHDF5
	triggers      []TriggerHDF5
	bitmapWidth   int
	bitmaps       [][]uint8
	telTriggers   []TelTriggerHDF5
	arrayPointing []ArrayPointingHDF5
	telPointing   map[uint16][]TelPointingHDF5
	showers       []ShowerHDF5
	images        map[uint16][]fixtureImageRow
	params        map[uint16][]ParametersHDF5
	simImages     map[uint16][]fixtureImageRow

	skipMetadata      bool
	skipTrigger       bool
	skipBitmap        bool
	skipTelTrigger    bool
	skipArrayPointing bool
}

func compatibleMetadata(origin string) map[string]string {
	return map[string]string{
		metaKeyDescription:      productDescription,
		metaKeyDataModelVersion: dataModelVersion,
		metaKeyProcessType:      origin,
	}
}

// buildFixture writes a stage-1 file from the spec. Nil slices and maps
// leave the corresponding node out of the file.
func buildFixture(t *testing.T, filename string, spec fixtureSpec) {
	t.Helper()
	w := newFixtureWriter(t, filename)
	defer w.close()

	if !spec.skipMetadata {
		metadata := spec.metadata
		if metadata == nil {
			metadata = compatibleMetadata("Simulation")
		}
		keys := make([]string, 0, len(metadata))
		for key := range metadata {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		rows := make([]MetadataHDF5, 0, len(keys))
		for _, key := range keys {
			rows = append(rows, MetadataHDF5{
				key:   convertToHdf5String(key),
				value: convertToHdf5String(metadata[key]),
			})
		}
		writeFixtureTable(w, "/", "metadata", rows)
	}

	if spec.runHeaders != nil {
		writeFixtureTable(w, "/configuration/simulation", "run", spec.runHeaders)
	}
	if spec.layout != nil {
		writeFixtureTable(w, "/configuration/instrument/subarray", "layout", spec.layout)
	}

	if !spec.skipTrigger {
		writeFixtureTable(w, "/dl1/event/subarray", "trigger", spec.triggers)
	}
	if !spec.skipBitmap {
		writeFixtureMatrix(w, "/dl1/event/subarray", "tels_with_trigger", spec.bitmapWidth, spec.bitmaps)
	}
	if !spec.skipTelTrigger {
		writeFixtureTable(w, "/dl1/event/telescope", "trigger", spec.telTriggers)
	}

	if !spec.skipArrayPointing {
		writeFixtureTable(w, "/dl1/monitoring/subarray", "pointing", spec.arrayPointing)
	}
	for tel, rows := range spec.telPointing {
		writeFixtureTable(w, "/dl1/monitoring/telescope/pointing", telNodeName(tel), rows)
	}

	for tel, rows := range spec.images {
		writeImageGroup(w, path.Join(imagesGroupNode, telNodeName(tel)), rows)
	}
	for tel, rows := range spec.params {
		writeFixtureTable(w, parametersGroupNode, telNodeName(tel), rows)
	}

	if spec.showers != nil {
		writeFixtureTable(w, "/simulation/event/subarray", "shower", spec.showers)
	}
	for tel, rows := range spec.simImages {
		writeImageGroup(w, path.Join(simImagesGroupNode, telNodeName(tel)), rows)
	}
}

func writeImageGroup(w *fixtureWriter, groupPath string, rows []fixtureImageRow) {
	w.t.Helper()
	width := 0
	if len(rows) > 0 {
		width = len(rows[0].image)
	}
	images := make([][]float32, len(rows))
	peakTimes := make([][]float32, len(rows))
	masks := make([][]uint8, len(rows))
	for i, row := range rows {
		images[i] = row.image
		peakTimes[i] = row.peakTime
		masks[i] = row.mask
	}
	writeFixtureMatrix(w, groupPath, "image", width, images)
	writeFixtureMatrix(w, groupPath, "peak_time", width, peakTimes)
	writeFixtureMatrix(w, groupPath, "image_mask", width, masks)
}

const fixturePixels = 5

func fixturePixelImage(tel uint16, row int) fixtureImageRow {
	image := make([]float32, fixturePixels)
	peakTime := make([]float32, fixturePixels)
	mask := make([]uint8, fixturePixels)
	for p := 0; p < fixturePixels; p++ {
		image[p] = float32(int(tel)*100+row) + float32(p)/10
		peakTime[p] = image[p] + 0.5
	}
	mask[0] = 1
	return fixtureImageRow{image: image, peakTime: peakTime, mask: mask}
}

func fixtureParameters(tel uint16, row int, index EventIndex) ParametersHDF5 {
	return ParametersHDF5{
		obs_id:                 index.ObsID,
		event_id:               index.EventID,
		tel_id:                 int16(tel),
		hillas_intensity:       float64(int(tel)*1000 + row),
		hillas_length:          0.3,
		hillas_width:           0.1,
		timing_slope:           12.5,
		leakage_pixels_width_1: 0.05,
		concentration_cog:      0.7,
		morphology_num_pixels:  int32(fixturePixels),
		intensity_mean:         42.0,
		peak_time_mean:         17.0,
	}
}

// defaultFixtureSpec is a three-event, two-telescope simulation scenario.
// Telescope 2 does not trigger in the second event, so its tables only hold
// two rows.
func defaultFixtureSpec() fixtureSpec {
	triggers := []TriggerHDF5{
		{obs_id: 1, event_id: 101, time: 10.0},
		{obs_id: 1, event_id: 102, time: 20.0},
		{obs_id: 1, event_id: 103, time: 30.0},
	}
	return fixtureSpec{
		runHeaders: []RunConfigHDF5{{
			obs_id:           1,
			corsika_version:  77500,
			simtel_version:   16200,
			energy_range_min: 0.003,
			energy_range_max: 330.0,
			spectral_index:   -2.0,
			num_showers:      20000,
			shower_reuse:     20,
			max_alt:          1.22,
			min_alt:          1.22,
			max_az:           0.0,
			min_az:           0.0,
			prod_site_alt:    2150.0,
			atmosphere:       26,
		}},
		triggers:    triggers,
		bitmapWidth: 3,
		// Event 103 flags telescope 3, which has no tables anywhere in the
		// file. The bitmap stays authoritative for TelsWithTrigger while the
		// per-telescope streams only cover telescopes 1 and 2.
		bitmaps: [][]uint8{
			{1, 1, 0},
			{1, 0, 0},
			{1, 1, 1},
		},
		telTriggers: []TelTriggerHDF5{
			{obs_id: 1, event_id: 101, tel_id: 1, telescopetrigger_time: 10.1},
			{obs_id: 1, event_id: 101, tel_id: 2, telescopetrigger_time: 10.2},
			{obs_id: 1, event_id: 102, tel_id: 1, telescopetrigger_time: 20.1},
			{obs_id: 1, event_id: 103, tel_id: 1, telescopetrigger_time: 30.1},
			{obs_id: 1, event_id: 103, tel_id: 2, telescopetrigger_time: 30.2},
		},
		arrayPointing: []ArrayPointingHDF5{
			{time: 0.0, array_azimuth: 0.10, array_altitude: 1.10, array_ra: 2.10, array_dec: 3.10},
			{time: 15.0, array_azimuth: 0.20, array_altitude: 1.20, array_ra: 2.20, array_dec: 3.20},
			{time: 29.0, array_azimuth: 0.30, array_altitude: 1.30, array_ra: 2.30, array_dec: 3.30},
		},
		telPointing: map[uint16][]TelPointingHDF5{
			1: {
				{telescopetrigger_time: 5.0, azimuth: 0.51, altitude: 1.51},
				{telescopetrigger_time: 25.0, azimuth: 0.52, altitude: 1.52},
			},
			2: {
				{telescopetrigger_time: 9.0, azimuth: 0.61, altitude: 1.61},
				{telescopetrigger_time: 31.0, azimuth: 0.62, altitude: 1.62},
			},
		},
		showers: []ShowerHDF5{
			{obs_id: 1, event_id: 101, true_energy: 100.0, true_alt: 1.21, true_az: 0.01, true_core_x: 10.0, true_core_y: -10.0, true_h_first_int: 21000.0, true_x_max: 300.0, true_shower_primary_id: 0},
			{obs_id: 1, event_id: 102, true_energy: 101.0, true_alt: 1.22, true_az: 0.02, true_core_x: 11.0, true_core_y: -11.0, true_h_first_int: 22000.0, true_x_max: 310.0, true_shower_primary_id: 0},
			{obs_id: 1, event_id: 103, true_energy: 102.0, true_alt: 1.23, true_az: 0.03, true_core_x: 12.0, true_core_y: -12.0, true_h_first_int: 23000.0, true_x_max: 320.0, true_shower_primary_id: 101},
		},
		images: map[uint16][]fixtureImageRow{
			1: {fixturePixelImage(1, 0), fixturePixelImage(1, 1), fixturePixelImage(1, 2)},
			2: {fixturePixelImage(2, 0), fixturePixelImage(2, 1)},
		},
		params: map[uint16][]ParametersHDF5{
			1: {
				fixtureParameters(1, 0, EventIndex{1, 101}),
				fixtureParameters(1, 1, EventIndex{1, 102}),
				fixtureParameters(1, 2, EventIndex{1, 103}),
			},
			2: {
				fixtureParameters(2, 0, EventIndex{1, 101}),
				fixtureParameters(2, 1, EventIndex{1, 103}),
			},
		},
		simImages: map[uint16][]fixtureImageRow{
			1: {fixturePixelImage(1, 0), fixturePixelImage(1, 1), fixturePixelImage(1, 2)},
		},
	}
}
