package dl1

import "fmt"

type TelescopeDescription struct {
	ID        uint16
	Name      string
	Type      string
	Camera    string
	NumPixels int
	Pos       [3]float64
}

type SubarrayDescription struct {
	Name string
	Tels map[uint16]TelescopeDescription
}

const subarrayName = "Subarray"

func subarrayFromFile(acc *fileAccessor) (*SubarrayDescription, error) {
	rows, err := readTable[LayoutHDF5](acc, layoutNode)
	if err != nil {
		return nil, &ErrSchema{Node: layoutNode, Err: err}
	}
	subarray := &SubarrayDescription{
		Name: subarrayName,
		Tels: make(map[uint16]TelescopeDescription, len(rows)),
	}
	for _, row := range rows {
		tel := uint16(row.tel_id)
		subarray.Tels[tel] = TelescopeDescription{
			ID:        tel,
			Name:      hdf5StringToGo(row.name),
			Type:      hdf5StringToGo(row.tel_type),
			Camera:    hdf5StringToGo(row.camera),
			NumPixels: int(row.n_pixels),
			Pos:       [3]float64{row.pos_x, row.pos_y, row.pos_z},
		}
	}
	return subarray, nil
}

// subarrayFromCursors derives a minimal description from the telescope nodes
// present in the file. Pixel counts come from the image dataset width.
func subarrayFromCursors(cursors *telescopeCursors, telPointing map[uint16]*telPointingTable) *SubarrayDescription {
	subarray := &SubarrayDescription{
		Name: subarrayName,
		Tels: make(map[uint16]TelescopeDescription),
	}
	add := func(tel uint16, numPixels int) {
		desc, ok := subarray.Tels[tel]
		if !ok {
			desc = TelescopeDescription{ID: tel, Name: telNodeName(tel)}
		}
		if numPixels > 0 {
			desc.NumPixels = numPixels
		}
		subarray.Tels[tel] = desc
	}
	for tel, cursor := range cursors.images {
		add(tel, int(cursor.image.width))
	}
	for tel := range cursors.params {
		add(tel, 0)
	}
	for tel := range telPointing {
		add(tel, 0)
	}
	return subarray
}

// resolveSubarray picks the best available telescope layout: the one stored
// in the file, then the observatory database, then a minimal description
// derived from the file tree. Layout problems never fail the open.
func resolveSubarray(acc *fileAccessor, cursors *telescopeCursors, telPointing map[uint16]*telPointingTable, obsID int32, config Configuration) *SubarrayDescription {
	if acc.nodeExists(layoutNode) {
		subarray, err := subarrayFromFile(acc)
		if err == nil {
			return subarray
		}
		logger.Error(err.Error())
	}

	if !config.NoDB {
		db, err := ConnectToDatabase(config.User, config.Passwd, config.Host, config.DBName)
		if err != nil {
			errMessage := fmt.Errorf("error connecting to database: %w", err)
			logger.Error(errMessage.Error())
		} else {
			defer db.Close()
			subarray, err := SubarrayFromDB(db, obsID)
			if err == nil {
				return subarray
			}
			errMessage := fmt.Errorf("error reading telescope layout from database: %w", err)
			logger.Error(errMessage.Error())
		}
	}

	if config.Verbosity > 0 {
		logger.Info("Deriving telescope layout from file contents", "instrument")
	}
	return subarrayFromCursors(cursors, telPointing)
}
