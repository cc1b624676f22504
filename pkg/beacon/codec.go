package beacon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/calvinalkan/beacon-reader/pkg/shardcache"
)

// Every record on disk is a frame prefix followed by the fixed-size body:
//
//	offset 0  uint16  magic (per record type)
//	offset 2  uint16  version
//	offset 4  uint32  CRC32-IEEE of the body
//	offset 8  body    little-endian fields in declaration order
const (
	frameSize = 8

	formatVersion = 1

	magicHeader uint16 = 0xbe01
	magicStatus uint16 = 0xbe02
	magicEvent  uint16 = 0xbe03
)

var (
	headerBodySize = binary.Size(Header{})
	statusBodySize = binary.Size(Status{})
	eventBodySize  = binary.Size(Event{})
)

// DecodeHeader reads one [Header]. It satisfies [shardcache.DecodeFunc].
func DecodeHeader(r io.Reader) (Header, error) {
	return decodeRecord[Header](r, magicHeader, headerBodySize)
}

// DecodeStatus reads one [Status]. It satisfies [shardcache.DecodeFunc].
func DecodeStatus(r io.Reader) (Status, error) {
	return decodeRecord[Status](r, magicStatus, statusBodySize)
}

// DecodeEvent reads one [Event]. It satisfies [shardcache.DecodeFunc].
func DecodeEvent(r io.Reader) (Event, error) {
	return decodeRecord[Event](r, magicEvent, eventBodySize)
}

// EncodeHeader writes h as one framed record.
func EncodeHeader(w io.Writer, h *Header) error {
	return encodeRecord(w, magicHeader, h)
}

// EncodeStatus writes s as one framed record.
func EncodeStatus(w io.Writer, s *Status) error {
	return encodeRecord(w, magicStatus, s)
}

// EncodeEvent writes e as one framed record.
func EncodeEvent(w io.Writer, e *Event) error {
	return encodeRecord(w, magicEvent, e)
}

// RecordSize returns the on-disk size of one record of the category,
// frame included.
func RecordSize(c Category) int {
	switch c {
	case CategoryHeader:
		return frameSize + headerBodySize
	case CategoryStatus:
		return frameSize + statusBodySize
	case CategoryEvent:
		return frameSize + eventBodySize
	default:
		return 0
	}
}

// decodeRecord returns io.EOF only when r ends before the first byte of a
// frame. Anything shorter than a whole record is malformed.
func decodeRecord[T any](r io.Reader, magic uint16, bodySize int) (T, error) {
	var (
		rec   T
		frame [frameSize]byte
	)

	n, err := io.ReadFull(r, frame[:])
	if n == 0 && errors.Is(err, io.EOF) {
		return rec, io.EOF
	}

	if err != nil {
		return rec, fmt.Errorf("%w: frame: %w", shardcache.ErrMalformed, err)
	}

	if got := binary.LittleEndian.Uint16(frame[0:2]); got != magic {
		return rec, fmt.Errorf("%w: magic %#04x, want %#04x", shardcache.ErrMalformed, got, magic)
	}

	if got := binary.LittleEndian.Uint16(frame[2:4]); got != formatVersion {
		return rec, fmt.Errorf("%w: unsupported version %d", shardcache.ErrMalformed, got)
	}

	body := make([]byte, bodySize)

	_, err = io.ReadFull(r, body)
	if err != nil {
		return rec, fmt.Errorf("%w: body: %w", shardcache.ErrMalformed, err)
	}

	if got, want := crc32.ChecksumIEEE(body), binary.LittleEndian.Uint32(frame[4:8]); got != want {
		return rec, fmt.Errorf("%w: checksum %#08x, want %#08x", shardcache.ErrMalformed, got, want)
	}

	_, err = binary.Decode(body, binary.LittleEndian, &rec)
	if err != nil {
		return rec, fmt.Errorf("%w: %w", shardcache.ErrMalformed, err)
	}

	return rec, nil
}

func encodeRecord(w io.Writer, magic uint16, rec any) error {
	body, err := binary.Append(nil, binary.LittleEndian, rec)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}

	buf := make([]byte, frameSize, frameSize+len(body))
	binary.LittleEndian.PutUint16(buf[0:2], magic)
	binary.LittleEndian.PutUint16(buf[2:4], formatVersion)
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(body))

	_, err = w.Write(append(buf, body...))

	return err
}
