package logstore

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/hupe1980/tmrm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []record {
	return []record{
		{typ: recordAlloc, id: 1},
		{typ: recordAlloc, id: 2},
		{typ: recordProperty, prop: model.Property{Source: 1, Key: 2, Value: model.ProxyValue(1)}},
		{typ: recordProperty, prop: model.Property{Source: 2, Key: 2, Value: model.LiteralValue(model.NewLiteral("héllo", "urn:dt"))}},
		{typ: recordProperty, prop: model.Property{Source: 2, Key: 1, Value: model.LiteralValue(model.NewLiteral("", ""))}},
	}
}

func TestRecords(t *testing.T) {
	var buf []byte
	for _, r := range sampleRecords() {
		buf = appendRecord(buf, r)
	}

	var got []record
	require.NoError(t, decodeRecords(buf, func(r record) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, len(sampleRecords()))
	for i, want := range sampleRecords() {
		assert.Equal(t, want.typ, got[i].typ)
		assert.Equal(t, want.id, got[i].id)
		assert.Equal(t, want.prop.Source, got[i].prop.Source)
		assert.Equal(t, want.prop.Key, got[i].prop.Key)
		assert.True(t, want.prop.Value.Equal(got[i].prop.Value))
	}

	t.Run("Corrupted", func(t *testing.T) {
		bad := bytes.Clone(buf)
		bad[len(bad)-1] ^= 0xff
		err := decodeRecords(bad, func(record) error { return nil })
		assert.ErrorIs(t, err, errInvalidCRC)
	})

	t.Run("Truncated", func(t *testing.T) {
		err := decodeRecords(buf[:len(buf)-3], func(record) error { return nil })
		assert.Error(t, err)
	})
}

func TestBlocks(t *testing.T) {
	compressible := bytes.Repeat([]byte("topic map "), 4096)
	random := []byte("xq9")

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			for _, data := range [][]byte{compressible, random} {
				block := appendBlock(nil, data, c)
				got, n, err := readBlock(block, c)
				require.NoError(t, err)
				assert.Equal(t, len(block), n)
				assert.Equal(t, data, got)
			}
			if c != CompressionNone {
				assert.Less(t, len(appendBlock(nil, compressible, c)), len(compressible)/2)
			}
		})
	}

	_, _, err := readBlock([]byte{1, 2}, CompressionLZ4)
	assert.ErrorIs(t, err, errCorruptBlock)
}

func TestBlocks_OversizedHeader(t *testing.T) {
	block := appendBlock(nil, bytes.Repeat([]byte("topic map "), 64), CompressionLZ4)
	binary.LittleEndian.PutUint32(block[0:], 0xFFFFFFF0)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		_, _, err := readBlock(block, c)
		assert.ErrorIs(t, err, errCorruptBlock, c.String())
	}

	hdr := make([]byte, blockHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:], maxBlockSize+1)
	_, _, err := readBlock(hdr, CompressionNone)
	assert.ErrorIs(t, err, errCorruptBlock)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}

func TestSegment(t *testing.T) {
	var payload []byte
	for range 200 {
		for _, r := range sampleRecords() {
			payload = appendRecord(payload, r)
		}
	}

	h := segmentHeader{kind: kindSnapshot, compression: CompressionZSTD, seq: 42, records: 1000}
	data := encodeSegment(h, payload, 1024)

	gotH, gotPayload, err := decodeSegment(data)
	require.NoError(t, err)
	assert.Equal(t, h, gotH)
	assert.Equal(t, payload, gotPayload)

	t.Run("Empty", func(t *testing.T) {
		data := encodeSegment(segmentHeader{kind: kindLog}, nil, 1024)
		_, p, err := decodeSegment(data)
		require.NoError(t, err)
		assert.Empty(t, p)
	})

	t.Run("BadMagic", func(t *testing.T) {
		_, _, err := decodeSegment([]byte("nope"))
		assert.ErrorIs(t, err, errBadSegment)
	})
}

func TestSegmentNames(t *testing.T) {
	name := logName(7, "w")
	assert.Equal(t, "seg-0000000000000007-w.log", name)
	seq, ok := parseSeq(name, logPrefix)
	require.True(t, ok)
	assert.Equal(t, uint64(7), seq)

	seq, ok = parseSeq(snapshotName(12, "w"), snapshotPrefix)
	require.True(t, ok)
	assert.Equal(t, uint64(12), seq)

	_, ok = parseSeq("seg-abc", logPrefix)
	assert.False(t, ok)
	_, ok = parseSeq(currentName, logPrefix)
	assert.False(t, ok)
}
