package dl1

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// Per-telescope tables only hold rows for events where that telescope
// triggered, so each table gets its own forward cursor and is advanced at
// most once per event. Exhausting a cursor before the trigger stream ends
// means the table is shorter than the trigger pattern promised.

type imageCursor struct {
	node     string
	image    *matrixCursor[float32]
	peakTime *matrixCursor[float32]
	mask     *matrixCursor[uint8]
}

func newImageCursor(acc *fileAccessor, node string) (*imageCursor, error) {
	image, err := newMatrixCursor[float32](acc, path.Join(node, "image"))
	if err != nil {
		return nil, err
	}
	peakTime, err := newMatrixCursor[float32](acc, path.Join(node, "peak_time"))
	if err != nil {
		image.close()
		return nil, err
	}
	mask, err := newMatrixCursor[uint8](acc, path.Join(node, "image_mask"))
	if err != nil {
		image.close()
		peakTime.close()
		return nil, err
	}

	cursor := &imageCursor{node: node, image: image, peakTime: peakTime, mask: mask}
	if peakTime.rows != image.rows {
		cursor.close()
		return nil, &ErrRowCountMismatch{Node: peakTime.node, Expected: int(image.rows), Actual: int(peakTime.rows)}
	}
	if mask.rows != image.rows {
		cursor.close()
		return nil, &ErrRowCountMismatch{Node: mask.node, Expected: int(image.rows), Actual: int(mask.rows)}
	}
	return cursor, nil
}

func (c *imageCursor) next() ([]float32, []float32, []bool, error) {
	image, err := c.image.next()
	if err != nil {
		return nil, nil, nil, err
	}
	peakTime, err := c.peakTime.next()
	if err != nil {
		return nil, nil, nil, err
	}
	flags, err := c.mask.next()
	if err != nil {
		return nil, nil, nil, err
	}

	mask := make([]bool, len(flags))
	for i, flag := range flags {
		mask[i] = flag != 0
	}
	return image, peakTime, mask, nil
}

func (c *imageCursor) close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.image.close(), c.peakTime.close(), c.mask.close())
}

// telescopeCursors is the set of per-telescope forward cursors of one file.
type telescopeCursors struct {
	images map[uint16]*imageCursor
	params map[uint16]*tableCursor[ParametersHDF5]
}

func openTelescopeCursors(acc *fileAccessor, caps Capabilities) (*telescopeCursors, error) {
	cursors := &telescopeCursors{
		images: make(map[uint16]*imageCursor),
		params: make(map[uint16]*tableCursor[ParametersHDF5]),
	}

	if caps.HasLevel(DL1Images) {
		nodes, err := discoverTelescopeNodes(acc, imagesGroupNode)
		if err != nil {
			return nil, &ErrSchema{Node: imagesGroupNode, Err: err}
		}
		for tel, node := range nodes {
			cursor, err := newImageCursor(acc, node)
			if err != nil {
				cursors.close()
				return nil, err
			}
			cursors.images[tel] = cursor
		}
	}

	if caps.HasLevel(DL1Parameters) {
		nodes, err := discoverTelescopeNodes(acc, parametersGroupNode)
		if err != nil {
			cursors.close()
			return nil, &ErrSchema{Node: parametersGroupNode, Err: err}
		}
		for tel, node := range nodes {
			cursor, err := newTableCursor[ParametersHDF5](acc, node)
			if err != nil {
				cursors.close()
				return nil, &ErrSchema{Node: node, Err: err}
			}
			cursors.params[tel] = cursor
		}
	}

	return cursors, nil
}

// nextImage reads the image row of one telescope event. Running out of rows
// while the trigger stream continues is a hard consistency failure.
func (t *telescopeCursors) nextImage(tel uint16) ([]float32, []float32, []bool, error) {
	cursor, ok := t.images[tel]
	if !ok {
		return nil, nil, nil, errNoTelescopeTable
	}
	image, peakTime, mask, err := cursor.next()
	if err == io.EOF {
		return nil, nil, nil, &ErrRowCountMismatch{
			Node:     cursor.node,
			Expected: int(cursor.image.pos) + 1,
			Actual:   int(cursor.image.rows),
		}
	}
	return image, peakTime, mask, err
}

func (t *telescopeCursors) nextParameters(tel uint16) (*ParameterBundle, error) {
	cursor, ok := t.params[tel]
	if !ok {
		return nil, errNoTelescopeTable
	}
	row, err := cursor.next()
	if err == io.EOF {
		return nil, &ErrRowCountMismatch{
			Node:     cursor.node,
			Expected: int(cursor.pos) + 1,
			Actual:   int(cursor.rows),
		}
	}
	if err != nil {
		return nil, err
	}
	bundle := toParameterBundle(row)
	return &bundle, nil
}

func (t *telescopeCursors) close() error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, cursor := range t.images {
		if err := cursor.close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing image cursor %q: %w", cursor.node, err))
		}
	}
	for _, cursor := range t.params {
		if err := cursor.close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing parameter cursor %q: %w", cursor.node, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

var errNoTelescopeTable = errors.New("no table for telescope")

// discoverTelescopeNodes lists a group and maps every tel_NNN child to its
// full node path. Children with other names are skipped.
func discoverTelescopeNodes(acc *fileAccessor, groupPath string) (map[uint16]string, error) {
	children, err := acc.listChildren(groupPath)
	if err != nil {
		return nil, err
	}
	nodes := make(map[uint16]string, len(children))
	for _, child := range children {
		tel, ok := parseTelNodeName(child)
		if !ok {
			message := fmt.Sprintf("Skipping unexpected node %q under %q", child, groupPath)
			logger.Info(message, "demux")
			continue
		}
		nodes[tel] = path.Join(groupPath, child)
	}
	return nodes, nil
}

func parseTelNodeName(name string) (uint16, bool) {
	digits, found := strings.CutPrefix(name, "tel_")
	if !found {
		return 0, false
	}
	id, err := strconv.ParseUint(digits, 10, 16)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint16(id), true
}

func toParameterBundle(row ParametersHDF5) ParameterBundle {
	return ParameterBundle{
		Hillas: HillasParameters{
			Intensity: row.hillas_intensity,
			X:         row.hillas_x,
			Y:         row.hillas_y,
			R:         row.hillas_r,
			Phi:       row.hillas_phi,
			Length:    row.hillas_length,
			Width:     row.hillas_width,
			Psi:       row.hillas_psi,
			Skewness:  row.hillas_skewness,
			Kurtosis:  row.hillas_kurtosis,
		},
		Timing: TimingParameters{
			Slope:     row.timing_slope,
			Intercept: row.timing_intercept,
			Deviation: row.timing_deviation,
		},
		Leakage: LeakageParameters{
			PixelsWidth1:    row.leakage_pixels_width_1,
			PixelsWidth2:    row.leakage_pixels_width_2,
			IntensityWidth1: row.leakage_intensity_width_1,
			IntensityWidth2: row.leakage_intensity_width_2,
		},
		Concentration: ConcentrationParameters{
			Cog:   row.concentration_cog,
			Core:  row.concentration_core,
			Pixel: row.concentration_pixel,
		},
		Morphology: MorphologyParameters{
			NumPixels:        row.morphology_num_pixels,
			NumIslands:       row.morphology_num_islands,
			NumSmallIslands:  row.morphology_num_small_islands,
			NumMediumIslands: row.morphology_num_medium_islands,
			NumLargeIslands:  row.morphology_num_large_islands,
		},
		Intensity: StatisticsParameters{
			Max:      row.intensity_max,
			Min:      row.intensity_min,
			Mean:     row.intensity_mean,
			Std:      row.intensity_std,
			Skewness: row.intensity_skewness,
			Kurtosis: row.intensity_kurtosis,
		},
		PeakTime: StatisticsParameters{
			Max:      row.peak_time_max,
			Min:      row.peak_time_min,
			Mean:     row.peak_time_mean,
			Std:      row.peak_time_std,
			Skewness: row.peak_time_skewness,
			Kurtosis: row.peak_time_kurtosis,
		},
	}
}
