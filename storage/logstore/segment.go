package logstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// segmentKind distinguishes incremental logs from full snapshots.
type segmentKind uint8

const (
	kindLog      segmentKind = 0
	kindSnapshot segmentKind = 1
)

const (
	segmentMagic      = "TMRM"
	segmentVersion    = 1
	segmentHeaderSize = 20

	logPrefix      = "seg-"
	snapshotPrefix = "snap-"
	currentName    = "CURRENT"
)

var errBadSegment = errors.New("bad segment")

// segmentHeader: [magic 4][version u8][kind u8][compression u8][reserved u8]
// [seq u64][records u32], followed by compressed blocks of records.
//
// For a snapshot, seq is the last log segment it covers.
type segmentHeader struct {
	kind        segmentKind
	compression Compression
	seq         uint64
	records     uint32
}

func encodeSegment(h segmentHeader, payload []byte, blockSize int) []byte {
	out := make([]byte, segmentHeaderSize, segmentHeaderSize+len(payload)/2+blockHeaderSize)
	copy(out, segmentMagic)
	out[4] = segmentVersion
	out[5] = byte(h.kind)
	out[6] = byte(h.compression)
	binary.LittleEndian.PutUint64(out[8:], h.seq)
	binary.LittleEndian.PutUint32(out[16:], h.records)

	for len(payload) > 0 {
		n := min(len(payload), blockSize)
		out = appendBlock(out, payload[:n], h.compression)
		payload = payload[n:]
	}
	return out
}

func decodeSegment(data []byte) (segmentHeader, []byte, error) {
	var h segmentHeader
	if len(data) < segmentHeaderSize || string(data[:4]) != segmentMagic {
		return h, nil, fmt.Errorf("%w: missing magic", errBadSegment)
	}
	if data[4] != segmentVersion {
		return h, nil, fmt.Errorf("%w: unsupported version %d", errBadSegment, data[4])
	}
	h.kind = segmentKind(data[5])
	h.compression = Compression(data[6])
	h.seq = binary.LittleEndian.Uint64(data[8:])
	h.records = binary.LittleEndian.Uint32(data[16:])

	var payload []byte
	for rest := data[segmentHeaderSize:]; len(rest) > 0; {
		block, n, err := readBlock(rest, h.compression)
		if err != nil {
			return h, nil, err
		}
		payload = append(payload, block...)
		rest = rest[n:]
	}
	return h, payload, nil
}

func logName(seq uint64, writer string) string {
	return fmt.Sprintf("%s%016d-%s.log", logPrefix, seq, writer)
}

func snapshotName(seq uint64, writer string) string {
	return fmt.Sprintf("%s%016d-%s.snap", snapshotPrefix, seq, writer)
}

// parseSeq extracts the sequence number of a segment or snapshot name.
func parseSeq(name, prefix string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || len(rest) < 16 {
		return 0, false
	}
	seq, err := strconv.ParseUint(rest[:16], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
