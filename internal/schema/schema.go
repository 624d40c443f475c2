package schema

// SchemaVersion is the current journal record schema version.
const SchemaVersion uint16 = 1

// RecordType defines the category of a record written to the journal.
type RecordType uint16

const (
	RecordUnknown RecordType = iota
	RecordQuoteTick
	RecordTradeTick
	RecordOrderEvent
	RecordCommand
)

// RecordHeader is the common metadata attached to every journal record.
type RecordHeader struct {
	Type    RecordType
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
}

// NewHeader builds a header with the current schema version.
func NewHeader(recordType RecordType, source uint16, seq uint64, tsEvent, tsRecv int64) RecordHeader {
	return RecordHeader{
		Type:    recordType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
