package dl1

import (
	"fmt"
)

// TriggeredTelescopes converts one row of the trigger pattern into the list
// of telescope ids that participated. Column i of the pattern corresponds to
// telescope id i+1, ids are returned in ascending order.
func TriggeredTelescopes(flags []uint8) []uint16 {
	tels := make([]uint16, 0, len(flags))
	for i, flag := range flags {
		if flag != 0 {
			tels = append(tels, uint16(i)+1)
		}
	}
	return tels
}

type telTime struct {
	tel  uint16
	time float64
}

// indexTelescopeTriggers groups the telescope trigger rows by event, keeping
// the file order within each event.
func indexTelescopeTriggers(rows []TelTriggerHDF5) map[EventIndex][]telTime {
	index := make(map[EventIndex][]telTime)
	for _, row := range rows {
		key := EventIndex{ObsID: row.obs_id, EventID: row.event_id}
		index[key] = append(index[key], telTime{tel: uint16(row.tel_id), time: row.telescopetrigger_time})
	}
	return index
}

// newTelFilter builds the allowed-telescopes set. A nil filter accepts
// every telescope.
func newTelFilter(ids []uint16) map[uint16]bool {
	if len(ids) == 0 {
		return nil
	}
	filter := make(map[uint16]bool, len(ids))
	for _, id := range ids {
		filter[id] = true
	}
	return filter
}

func (s *Source) allowedTel(id uint16) bool {
	if s.allowed == nil {
		return true
	}
	return s.allowed[id]
}

func telNodeName(id uint16) string {
	return fmt.Sprintf("tel_%03d", id)
}
