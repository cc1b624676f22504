package beacon

import (
	"fmt"
	"unsafe"

	"github.com/dustin/go-humanize"
)

// StructSizes reports the in-memory size of each record type.
func StructSizes() string {
	return fmt.Sprintf("beacon_header = %d, beacon_status = %d, beacon_event = %d",
		unsafe.Sizeof(Header{}), unsafe.Sizeof(Status{}), unsafe.Sizeof(Event{}))
}

// StructSizesHuman is [StructSizes] with IEC units, e.g. "8.0 KiB".
func StructSizesHuman() string {
	return fmt.Sprintf("beacon_header = %s, beacon_status = %s, beacon_event = %s",
		humanize.IBytes(uint64(unsafe.Sizeof(Header{}))),
		humanize.IBytes(uint64(unsafe.Sizeof(Status{}))),
		humanize.IBytes(uint64(unsafe.Sizeof(Event{}))))
}
