package result

import (
	"encoding/json"
	"errors"
	"strconv"
)

type (
	// Event is a single event occurrence delivered by waitevents.
	Event struct {
		Name string
		IDs  []uint64
	}

	// Events is the waitevents call result.
	Events struct {
		Events []Event `json:"events"`
		// RequestProcessingTime is the time in milliseconds the call was
		// processed (suspended included).
		RequestProcessingTime int64 `json:"requestProcessingTime"`
	}

	// eventAux is used to marshal ids as decimal strings, they don't fit into
	// JSON numbers.
	eventAux struct {
		Name string   `json:"name"`
		IDs  []string `json:"ids"`
	}
)

// MarshalJSON implements the json.Marshaler interface.
func (e Event) MarshalJSON() ([]byte, error) {
	aux := eventAux{
		Name: e.Name,
		IDs:  make([]string, len(e.IDs)),
	}
	for i, id := range e.IDs {
		aux.IDs[i] = strconv.FormatUint(id, 10)
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (e *Event) UnmarshalJSON(data []byte) error {
	aux := new(eventAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.Name == "" {
		return errors.New("event without name")
	}
	ids := make([]uint64, len(aux.IDs))
	for i, s := range aux.IDs {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	e.Name = aux.Name
	e.IDs = ids
	return nil
}

// MarshalJSON implements the json.Marshaler interface. A nil event list is
// marshaled as an empty array.
func (e Events) MarshalJSON() ([]byte, error) {
	type alias Events
	if e.Events == nil {
		e.Events = []Event{}
	}
	return json.Marshal(alias(e))
}
