package dl1

import (
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// Node paths of the stage-1 data product.
const (
	metadataNode         = "/metadata"
	runConfigNode        = "/configuration/simulation/run"
	layoutNode           = "/configuration/instrument/subarray/layout"
	triggerNode          = "/dl1/event/subarray/trigger"
	telsWithTriggerNode  = "/dl1/event/subarray/tels_with_trigger"
	telTriggerNode       = "/dl1/event/telescope/trigger"
	imagesGroupNode      = "/dl1/event/telescope/images"
	parametersGroupNode  = "/dl1/event/telescope/parameters"
	arrayPointingNode    = "/dl1/monitoring/subarray/pointing"
	telPointingGroupNode = "/dl1/monitoring/telescope/pointing"
	simulationNode       = "/simulation"
	showerNode           = "/simulation/event/subarray/shower"
	simImagesGroupNode   = "/simulation/event/telescope/images"
)

const (
	metaKeyDescription      = "CTA PRODUCT DESCRIPTION"
	metaKeyDataModelVersion = "CTA PRODUCT DATA MODEL VERSION"
	metaKeyProcessType      = "CTA PROCESS TYPE"

	productDescription = "DL1 Data Product"
	dataModelVersion   = "v1.0.0"
)

var hdf5Signature = [8]byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// IsCompatible reports whether the file is a readable stage-1 data product.
// Incompatible contents yield (false, nil), an error is returned only when
// the file cannot be accessed at all.
func IsCompatible(filename string) (bool, error) {
	file, err := os.Open(filename)
	if err != nil {
		return false, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	var signature [8]byte
	if _, err := io.ReadFull(file, signature[:]); err != nil {
		return false, nil
	}
	if signature != hdf5Signature {
		return false, nil
	}

	acc, err := openAccessor(filename)
	if err != nil {
		return false, nil
	}
	defer acc.close()

	meta, err := acc.readMetadata()
	if err != nil {
		return false, nil
	}
	if meta[metaKeyDescription] != productDescription {
		return false, nil
	}
	if meta[metaKeyDataModelVersion] != dataModelVersion {
		return false, nil
	}
	return true, nil
}

type fileAccessor struct {
	file     *hdf5.File
	filename string
}

func openAccessor(filename string) (*fileAccessor, error) {
	// Fixed-length string members share one global size
	hdf5.SetStringLength(STRLEN)

	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	return &fileAccessor{file: file, filename: filename}, nil
}

func (acc *fileAccessor) close() error {
	if acc == nil || acc.file == nil {
		return nil
	}
	err := acc.file.Close()
	acc.file = nil
	if err != nil {
		return fmt.Errorf("error closing file %q: %w", acc.filename, err)
	}
	return nil
}

func (acc *fileAccessor) listChildren(groupPath string) ([]string, error) {
	group, err := acc.file.OpenGroup(groupPath)
	if err != nil {
		return nil, fmt.Errorf("error opening group %q: %w", groupPath, err)
	}
	defer group.Close()

	n, err := group.NumObjects()
	if err != nil {
		return nil, fmt.Errorf("error listing group %q: %w", groupPath, err)
	}
	names := make([]string, 0, n)
	for i := uint(0); i < n; i++ {
		name, err := group.ObjectNameByIndex(i)
		if err != nil {
			return nil, fmt.Errorf("error listing group %q: %w", groupPath, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// nodeExists walks the group listings segment by segment, so probing for
// optional sub-trees never touches the HDF5 error stack.
func (acc *fileAccessor) nodeExists(nodePath string) bool {
	current := "/"
	for _, segment := range strings.Split(strings.Trim(nodePath, "/"), "/") {
		children, err := acc.listChildren(current)
		if err != nil {
			return false
		}
		if !slices.Contains(children, segment) {
			return false
		}
		current = path.Join(current, segment)
	}
	return true
}

// readTable reads a whole compound table into memory.
func readTable[T any](acc *fileAccessor, node string) ([]T, error) {
	dset, err := acc.file.OpenDataset(node)
	if err != nil {
		return nil, fmt.Errorf("error opening table %q: %w", node, err)
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("error reading extent of %q: %w", node, err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("table %q has rank %d, want 1", node, len(dims))
	}

	rows := make([]T, dims[0])
	if dims[0] == 0 {
		return rows, nil
	}
	if err := dset.Read(&rows); err != nil {
		return nil, fmt.Errorf("error reading table %q: %w", node, err)
	}
	return rows, nil
}

// tableCursor iterates a compound table one row per call, front to back.
type tableCursor[T any] struct {
	dset *hdf5.Dataset
	node string
	pos  uint
	rows uint
}

func newTableCursor[T any](acc *fileAccessor, node string) (*tableCursor[T], error) {
	dset, err := acc.file.OpenDataset(node)
	if err != nil {
		return nil, fmt.Errorf("error opening table %q: %w", node, err)
	}
	space := dset.Space()
	dims, _, err := space.SimpleExtentDims()
	space.Close()
	if err != nil {
		dset.Close()
		return nil, fmt.Errorf("error reading extent of %q: %w", node, err)
	}
	if len(dims) != 1 {
		dset.Close()
		return nil, fmt.Errorf("table %q has rank %d, want 1", node, len(dims))
	}
	return &tableCursor[T]{dset: dset, node: node, rows: dims[0]}, nil
}

func (c *tableCursor[T]) next() (T, error) {
	var row T
	if c.pos >= c.rows {
		return row, io.EOF
	}

	filespace := c.dset.Space()
	if err := filespace.SelectHyperslab([]uint{c.pos}, nil, []uint{1}, nil); err != nil {
		filespace.Close()
		return row, fmt.Errorf("error selecting row %d of %q: %w", c.pos, c.node, err)
	}
	memspace, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		filespace.Close()
		return row, fmt.Errorf("error reading row %d of %q: %w", c.pos, c.node, err)
	}

	buffer := make([]T, 1)
	err = c.dset.ReadSubset(&buffer, memspace, filespace)
	memspace.Close()
	filespace.Close()
	if err != nil {
		return row, fmt.Errorf("error reading row %d of %q: %w", c.pos, c.node, err)
	}
	c.pos++
	return buffer[0], nil
}

func (c *tableCursor[T]) close() error {
	if c == nil || c.dset == nil {
		return nil
	}
	err := c.dset.Close()
	c.dset = nil
	return err
}

// matrixCursor iterates a 2-D dataset one row per call, front to back.
type matrixCursor[T any] struct {
	dset  *hdf5.Dataset
	node  string
	pos   uint
	rows  uint
	width uint
}

func newMatrixCursor[T any](acc *fileAccessor, node string) (*matrixCursor[T], error) {
	dset, err := acc.file.OpenDataset(node)
	if err != nil {
		return nil, fmt.Errorf("error opening dataset %q: %w", node, err)
	}
	space := dset.Space()
	dims, _, err := space.SimpleExtentDims()
	space.Close()
	if err != nil {
		dset.Close()
		return nil, fmt.Errorf("error reading extent of %q: %w", node, err)
	}
	if len(dims) != 2 {
		dset.Close()
		return nil, fmt.Errorf("dataset %q has rank %d, want 2", node, len(dims))
	}
	return &matrixCursor[T]{dset: dset, node: node, rows: dims[0], width: dims[1]}, nil
}

func (c *matrixCursor[T]) next() ([]T, error) {
	if c.pos >= c.rows {
		return nil, io.EOF
	}
	if c.width == 0 {
		c.pos++
		return []T{}, nil
	}

	filespace := c.dset.Space()
	if err := filespace.SelectHyperslab([]uint{c.pos, 0}, nil, []uint{1, c.width}, nil); err != nil {
		filespace.Close()
		return nil, fmt.Errorf("error selecting row %d of %q: %w", c.pos, c.node, err)
	}
	memspace, err := hdf5.CreateSimpleDataspace([]uint{1, c.width}, nil)
	if err != nil {
		filespace.Close()
		return nil, fmt.Errorf("error reading row %d of %q: %w", c.pos, c.node, err)
	}

	row := make([]T, c.width)
	err = c.dset.ReadSubset(&row, memspace, filespace)
	memspace.Close()
	filespace.Close()
	if err != nil {
		return nil, fmt.Errorf("error reading row %d of %q: %w", c.pos, c.node, err)
	}
	c.pos++
	return row, nil
}

func (c *matrixCursor[T]) close() error {
	if c == nil || c.dset == nil {
		return nil
	}
	err := c.dset.Close()
	c.dset = nil
	return err
}

func (acc *fileAccessor) readMetadata() (map[string]string, error) {
	rows, err := readTable[MetadataHDF5](acc, metadataNode)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string, len(rows))
	for _, row := range rows {
		meta[hdf5StringToGo(row.key)] = hdf5StringToGo(row.value)
	}
	return meta, nil
}
