package logstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/tmrm/internal/hash"
	"github.com/hupe1980/tmrm/model"
)

// recordType identifies the mutation a record replays.
type recordType uint8

const (
	recordAlloc    recordType = 1
	recordProperty recordType = 2
)

var (
	errInvalidCRC  = errors.New("invalid record checksum")
	errInvalidType = errors.New("invalid record type")
	errShortRecord = errors.New("short record")
)

// record is one logged mutation.
type record struct {
	typ  recordType
	id   model.ProxyID  // recordAlloc
	prop model.Property // recordProperty
}

// Frame: [crc u32][type u8][len u32][payload]. The checksum covers
// type, length and payload.
//
// Alloc payload:    [id u64]
// Property payload: [source u64][key u64][kind u8] then
//
//	proxy:   [id u64]
//	literal: [len u32][value][len u32][datatype]
const frameHeaderSize = 9

func appendRecord(dst []byte, r record) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, frameHeaderSize)...)
	dst[start+4] = byte(r.typ)

	switch r.typ {
	case recordAlloc:
		dst = binary.LittleEndian.AppendUint64(dst, uint64(r.id))
	case recordProperty:
		dst = binary.LittleEndian.AppendUint64(dst, uint64(r.prop.Source))
		dst = binary.LittleEndian.AppendUint64(dst, uint64(r.prop.Key))
		dst = append(dst, byte(r.prop.Value.Kind()))
		if id, ok := r.prop.Value.Proxy(); ok {
			dst = binary.LittleEndian.AppendUint64(dst, uint64(id))
		} else {
			l, _ := r.prop.Value.Literal()
			dst = appendString(dst, l.Value())
			dst = appendString(dst, l.Datatype())
		}
	}

	binary.LittleEndian.PutUint32(dst[start+5:], uint32(len(dst)-start-frameHeaderSize))
	binary.LittleEndian.PutUint32(dst[start:], hash.CRC32C(dst[start+4:]))
	return dst
}

func appendString(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// decodeRecords calls fn for every record in data.
func decodeRecords(data []byte, fn func(record) error) error {
	for off := 0; off < len(data); {
		if len(data)-off < frameHeaderSize {
			return fmt.Errorf("%w at offset %d", errShortRecord, off)
		}
		n := int(binary.LittleEndian.Uint32(data[off+5:]))
		end := off + frameHeaderSize + n
		if n < 0 || end > len(data) {
			return fmt.Errorf("%w at offset %d", errShortRecord, off)
		}
		if !hash.VerifyCRC32C(data[off+4:end], binary.LittleEndian.Uint32(data[off:])) {
			return fmt.Errorf("%w at offset %d", errInvalidCRC, off)
		}

		r, err := decodePayload(recordType(data[off+4]), data[off+frameHeaderSize:end])
		if err != nil {
			return fmt.Errorf("record at offset %d: %w", off, err)
		}
		if err := fn(r); err != nil {
			return err
		}
		off = end
	}
	return nil
}

func decodePayload(typ recordType, p []byte) (record, error) {
	r := record{typ: typ}
	switch typ {
	case recordAlloc:
		if len(p) != 8 {
			return r, errShortRecord
		}
		r.id = model.ProxyID(binary.LittleEndian.Uint64(p))
		return r, nil

	case recordProperty:
		if len(p) < 17 {
			return r, errShortRecord
		}
		r.prop.Source = model.ProxyID(binary.LittleEndian.Uint64(p))
		r.prop.Key = model.ProxyID(binary.LittleEndian.Uint64(p[8:]))
		kind := model.ValueKind(p[16])
		p = p[17:]

		switch kind {
		case model.KindProxy:
			if len(p) != 8 {
				return r, errShortRecord
			}
			r.prop.Value = model.ProxyValue(model.ProxyID(binary.LittleEndian.Uint64(p)))
		case model.KindLiteral:
			value, rest, err := readString(p)
			if err != nil {
				return r, err
			}
			datatype, rest, err := readString(rest)
			if err != nil {
				return r, err
			}
			if len(rest) != 0 {
				return r, errShortRecord
			}
			r.prop.Value = model.LiteralValue(model.NewLiteral(value, datatype))
		default:
			return r, fmt.Errorf("invalid value kind %d", kind)
		}
		return r, nil

	default:
		return r, fmt.Errorf("%w: %d", errInvalidType, typ)
	}
}

func readString(p []byte) (string, []byte, error) {
	if len(p) < 4 {
		return "", nil, errShortRecord
	}
	n := binary.LittleEndian.Uint32(p)
	p = p[4:]
	if uint64(len(p)) < uint64(n) {
		return "", nil, errShortRecord
	}
	return string(p[:n]), p[n:], nil
}
