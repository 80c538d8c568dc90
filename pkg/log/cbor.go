package log

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// journalCodec is the CBOR flavour of the event journal. Records are
// self-delimiting and written back to back, so a journal file is a plain
// CBOR sequence that a reader can resume after a torn tail.
type journalCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var codec = mustJournalCodec()

func mustJournalCodec() journalCodec {
	c, err := newJournalCodec()
	if err != nil {
		panic(err)
	}
	return c
}

func newJournalCodec() (journalCodec, error) {
	// Definite lengths only: a record cut short by a power loss must fail to
	// decode instead of yielding half an event.
	enc, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		return journalCodec{}, fmt.Errorf("journal encoder: %w", err)
	}

	// Command requests and responses are free-form; decode their maps with
	// string keys so farmhub-log can print them as JSON.
	dec, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return journalCodec{}, fmt.Errorf("journal decoder: %w", err)
	}
	return journalCodec{enc: enc, dec: dec}, nil
}

// EncodeEvent returns the journal record for event.
func EncodeEvent(event Event) ([]byte, error) {
	return codec.enc.Marshal(event)
}

// DecodeEvent parses one journal record.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := codec.dec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder appends journal records to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return codec.enc.NewEncoder(w)
}

// NewDecoder reads journal records from r one at a time.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return codec.dec.NewDecoder(r)
}
