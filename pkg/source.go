package dl1

import (
	"errors"
	"fmt"
	"io"
	"path"
	"slices"

	"golang.org/x/exp/maps"
	"gonum.org/v1/gonum/unit"
)

// Source reads one stage-1 file front to back and hands out assembled
// events. It owns the open HDF5 handles and the forward cursors, so a
// Source must be closed after use and is not safe for concurrent calls.
type Source struct {
	Filename string

	config Configuration

	acc        *fileAccessor
	meta       map[string]string
	caps       Capabilities
	runHeaders map[int32]RunHeader
	subarray   *SubarrayDescription

	triggerRows []TriggerHDF5
	telsFlags   *matrixCursor[uint8]
	telTriggers map[EventIndex][]telTime

	arrayPointing *arrayPointingTable
	telPointing   map[uint16]*telPointingTable

	shower  *tableCursor[ShowerHDF5]
	cursors *telescopeCursors

	allowed map[uint16]bool
	seq     int
	err     error
	closed  bool
}

// NewSource opens a stage-1 file and prepares the event stream: metadata and
// capabilities are resolved once, the small per-event tables are read into
// memory, and every table that follows the trigger stream row by row is
// checked against its length before the first event is assembled.
// The configuration is kept on the source, so sources with different event
// caps or telescope filters can read side by side.
func NewSource(filename string, config Configuration) (source *Source, err error) {
	acc, err := openAccessor(filename)
	if err != nil {
		return nil, err
	}
	source = &Source{
		Filename: filename,
		config:   config,
		acc:      acc,
		allowed:  newTelFilter(config.AllowedTels),
	}
	defer func() {
		if err != nil {
			source.Close()
			source = nil
		}
	}()

	if acc.nodeExists(metadataNode) {
		source.meta, err = acc.readMetadata()
		if err != nil {
			return nil, &ErrSchema{Node: metadataNode, Err: err}
		}
	} else {
		logger.Info("File carries no product metadata", "source")
		source.meta = make(map[string]string)
	}

	source.caps = probeCapabilities(acc)

	if !acc.nodeExists(triggerNode) {
		return nil, &ErrSchema{Node: triggerNode, Err: errors.New("missing trigger table")}
	}
	source.triggerRows, err = readTable[TriggerHDF5](acc, triggerNode)
	if err != nil {
		return nil, &ErrSchema{Node: triggerNode, Err: err}
	}

	if !acc.nodeExists(telsWithTriggerNode) {
		return nil, &ErrSchema{Node: telsWithTriggerNode, Err: errors.New("missing trigger pattern dataset")}
	}
	source.telsFlags, err = newMatrixCursor[uint8](acc, telsWithTriggerNode)
	if err != nil {
		return nil, &ErrSchema{Node: telsWithTriggerNode, Err: err}
	}
	if int(source.telsFlags.rows) != len(source.triggerRows) {
		return nil, &ErrRowCountMismatch{
			Node:     telsWithTriggerNode,
			Expected: len(source.triggerRows),
			Actual:   int(source.telsFlags.rows),
		}
	}

	if !acc.nodeExists(telTriggerNode) {
		return nil, &ErrSchema{Node: telTriggerNode, Err: errors.New("missing telescope trigger table")}
	}
	telTriggerRows, err := readTable[TelTriggerHDF5](acc, telTriggerNode)
	if err != nil {
		return nil, &ErrSchema{Node: telTriggerNode, Err: err}
	}
	source.telTriggers = indexTelescopeTriggers(telTriggerRows)

	if acc.nodeExists(arrayPointingNode) {
		var rows []ArrayPointingHDF5
		rows, err = readTable[ArrayPointingHDF5](acc, arrayPointingNode)
		if err != nil {
			return nil, &ErrSchema{Node: arrayPointingNode, Err: err}
		}
		source.arrayPointing = newArrayPointingTable(rows)
	}
	source.telPointing, err = loadTelPointing(acc)
	if err != nil {
		return nil, err
	}

	if source.caps.Simulation {
		if !acc.nodeExists(showerNode) {
			return nil, &ErrSchema{Node: showerNode, Err: errors.New("missing shower table")}
		}
		source.shower, err = newTableCursor[ShowerHDF5](acc, showerNode)
		if err != nil {
			return nil, &ErrSchema{Node: showerNode, Err: err}
		}
		if int(source.shower.rows) != len(source.triggerRows) {
			return nil, &ErrRowCountMismatch{
				Node:     showerNode,
				Expected: len(source.triggerRows),
				Actual:   int(source.shower.rows),
			}
		}
	}
	source.runHeaders, err = loadRunHeaders(acc, config.Verbosity)
	if err != nil {
		return nil, err
	}

	source.cursors, err = openTelescopeCursors(acc, source.caps)
	if err != nil {
		return nil, err
	}

	var obsID int32
	if len(source.triggerRows) > 0 {
		obsID = source.triggerRows[0].obs_id
	}
	source.subarray = resolveSubarray(acc, source.cursors, source.telPointing, obsID, config)

	if config.Verbosity > 0 {
		message := fmt.Sprintf("Opened %s with %d events", filename, len(source.triggerRows))
		logger.Info(message, "source")
	}
	return source, nil
}

// NextEvent assembles and returns the next event of the stream. It returns
// io.EOF once the trigger stream is exhausted or the configured event cap is
// reached. A fatal error ends the stream: later calls return the same error
// and no cursor advances past it.
func (s *Source) NextEvent() (*Event, error) {
	if s.closed {
		return nil, errors.New("event source is closed")
	}
	if s.err != nil {
		return nil, s.err
	}
	event, err := s.nextEvent()
	if err != nil && err != io.EOF {
		s.err = err
	}
	return event, err
}

func (s *Source) nextEvent() (*Event, error) {
	if s.seq >= len(s.triggerRows) {
		return nil, io.EOF
	}
	if s.config.MaxEvents > 0 && s.seq >= s.config.MaxEvents {
		if s.config.Verbosity > 0 {
			logger.Info("Max events reached", "source")
		}
		return nil, io.EOF
	}

	row := s.triggerRows[s.seq]
	event := &Event{
		SequenceIndex: s.seq,
		Index:         EventIndex{ObsID: row.obs_id, EventID: row.event_id},
		Trigger: Trigger{
			Time: row.time,
			Tel:  make(map[uint16]TelescopeTrigger),
		},
		Pointing: Pointing{
			Tel: make(map[uint16]TelescopePointing),
		},
		Tel: make(map[uint16]TelescopeDL1),
	}

	flags, err := s.telsFlags.next()
	if err != nil {
		return nil, fmt.Errorf("error reading trigger pattern of event %d: %w", s.seq, err)
	}
	event.Trigger.TelsWithTrigger = TriggeredTelescopes(flags)

	for _, tt := range s.telTriggers[event.Index] {
		if !s.allowedTel(tt.tel) {
			continue
		}
		event.Trigger.Tel[tt.tel] = TelescopeTrigger{Time: tt.time}
	}
	triggered := maps.Keys(event.Trigger.Tel)
	slices.Sort(triggered)

	if s.arrayPointing == nil {
		return nil, &ErrSchema{Node: arrayPointingNode, Err: errEmptyPointing}
	}
	event.Pointing.Array, err = s.arrayPointing.sample(row.time)
	if err != nil {
		return nil, err
	}
	for _, tel := range triggered {
		table, ok := s.telPointing[tel]
		if !ok {
			node := path.Join(telPointingGroupNode, telNodeName(tel))
			return nil, &ErrSchema{Node: node, Err: errors.New("no pointing table for triggered telescope")}
		}
		pointing, err := table.sample(event.Trigger.Tel[tel].Time)
		if err != nil {
			return nil, err
		}
		event.Pointing.Tel[tel] = pointing
	}

	if s.shower != nil {
		showerRow, err := s.shower.next()
		if err != nil {
			return nil, fmt.Errorf("error reading simulated shower of event %d: %w", s.seq, err)
		}
		shower := toShower(showerRow)
		event.Shower = &shower

		header, ok := s.runHeaders[row.obs_id]
		if !ok {
			return nil, &ErrUnboundObservation{ObsID: row.obs_id}
		}
		event.RunHeader = &header
	}

	for _, tel := range triggered {
		var dl1 TelescopeDL1
		carries := false

		if s.caps.HasLevel(DL1Images) {
			image, peakTime, mask, err := s.cursors.nextImage(tel)
			switch {
			case err == errNoTelescopeTable:
				if s.config.Verbosity > 0 {
					message := fmt.Sprintf("Telescope %d has no image table, event %d", tel, s.seq)
					logger.Info(message, "source")
				}
			case err != nil:
				return nil, err
			default:
				dl1.Image = image
				dl1.PeakTime = peakTime
				dl1.ImageMask = mask
				carries = true
			}
		}

		if s.caps.HasLevel(DL1Parameters) {
			bundle, err := s.cursors.nextParameters(tel)
			switch {
			case err == errNoTelescopeTable:
				if s.config.Verbosity > 0 {
					message := fmt.Sprintf("Telescope %d has no parameter table, event %d", tel, s.seq)
					logger.Info(message, "source")
				}
			case err != nil:
				return nil, err
			default:
				dl1.Parameters = bundle
				carries = true
			}
		}

		if carries {
			event.Tel[tel] = dl1
		}
	}

	if s.config.Verbosity > 1 {
		message := fmt.Sprintf("Read event %d with ID %d and %d triggered telescopes",
			s.seq, event.Index.EventID, len(event.Trigger.Tel))
		logger.Info(message, "source")
	}

	s.seq++
	return event, nil
}

func toShower(row ShowerHDF5) SimulatedShower {
	return SimulatedShower{
		Energy:    row.true_energy,
		Alt:       unit.Angle(row.true_alt),
		Az:        unit.Angle(row.true_az),
		CoreX:     row.true_core_x,
		CoreY:     row.true_core_y,
		HFirstInt: row.true_h_first_int,
		XMax:      row.true_x_max,
		PrimaryID: row.true_shower_primary_id,
	}
}

// Len reports the number of events in the file, independent of the
// configured event cap.
func (s *Source) Len() int {
	return len(s.triggerRows)
}

// ObsIDs returns the distinct observation ids of the trigger stream in
// ascending order.
func (s *Source) ObsIDs() []int32 {
	seen := make(map[int32]bool)
	for _, row := range s.triggerRows {
		seen[row.obs_id] = true
	}
	ids := maps.Keys(seen)
	slices.Sort(ids)
	return ids
}

func (s *Source) Capabilities() Capabilities {
	return s.caps
}

func (s *Source) IsSimulation() bool {
	return s.caps.Simulation
}

func (s *Source) HasSimulatedDL1() bool {
	return s.caps.SimulatedDL1
}

func (s *Source) DataLevels() []DataLevel {
	return s.caps.Levels
}

func (s *Source) Metadata() map[string]string {
	return s.meta
}

// Origin reports the process type recorded in the product metadata.
func (s *Source) Origin() string {
	return s.meta[metaKeyProcessType]
}

func (s *Source) RunHeaders() map[int32]RunHeader {
	return s.runHeaders
}

func (s *Source) Subarray() *SubarrayDescription {
	return s.subarray
}

// Close releases every open handle. Closing twice is a no-op.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.telsFlags.close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing trigger pattern dataset: %w", err))
	}
	if err := s.shower.close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing shower table: %w", err))
	}
	if err := s.cursors.close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.acc.close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
