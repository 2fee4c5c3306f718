package ipts

import (
	"bytes"
	"encoding/binary"
)

// Byte-fixture builders used across the tests in this package.
// These deliberately duplicate the wire layout by hand (rather than reusing
// the decoder's own read helpers) so a bug in one direction cannot mask a
// bug in the other.

func le(vs ...any) []byte {
	buf := &bytes.Buffer{}
	for _, v := range vs {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func hidFrame(typ FrameType, payload []byte) []byte {
	size := uint32(len(payload) + frameHeaderSize)
	return concat(le(size, uint16(typ)), payload)
}

func reportFrame(typ ReportType, payload []byte) []byte {
	return concat(le(uint8(typ), uint8(0), uint16(len(payload))), payload)
}

func reportsPayload(reports ...[]byte) []byte {
	return concat(reports...)
}

func heatmapDimReport(height, width, yMin, yMax, xMin, xMax, zMin, zMax uint8) []byte {
	return reportFrame(ReportHeatmapDim, le(height, width, yMin, yMax, xMin, xMax, zMin, zMax))
}

func timestampReport(ts uint32) []byte {
	return reportFrame(ReportTimestamp, le(ts))
}

func stylusV1Sample(mode uint8, x, y, pressure uint16) []byte {
	return concat(make([]byte, 4), le(mode, x, y, pressure), make([]byte, 1))
}

func stylusV2Sample(timestamp, mode, x, y, pressure, altitude, azimuth uint16) []byte {
	return concat(le(timestamp, mode, x, y, pressure, altitude, azimuth), make([]byte, 2))
}

func stylusRecord(serial uint32, samples ...[]byte) []byte {
	body := concat(le(uint8(len(samples))), make([]byte, 3), le(serial))
	return concat(body, concat(samples...))
}

func dftRowBytes(frequency, magnitude uint32, real, imag [DftNumComponents]int16, first, last, mid, zero int8) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, frequency)
	binary.Write(buf, binary.LittleEndian, magnitude)
	binary.Write(buf, binary.LittleEndian, real)
	binary.Write(buf, binary.LittleEndian, imag)
	binary.Write(buf, binary.LittleEndian, first)
	binary.Write(buf, binary.LittleEndian, last)
	binary.Write(buf, binary.LittleEndian, mid)
	binary.Write(buf, binary.LittleEndian, zero)
	return buf.Bytes()
}

func dftWindowReport(timestamp uint32, numRows, seqNum, dataType uint8, xRows, yRows [][]byte) []byte {
	hdr := le(timestamp, numRows, seqNum, uint8(1), uint8(1), uint8(1), dataType, uint16(0xffff))
	body := concat(hdr, concat(xRows...), concat(yRows...))
	return reportFrame(ReportDftWindow, body)
}

func penMetadataReport(seqNum, dataType uint8) []byte {
	return reportFrame(ReportDftMetadata, concat(make([]byte, 6), le(seqNum, dataType), make([]byte, 8)))
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// makeRow returns an encoded DFT row whose components are all zero except
// for the IQ values given in ampAt, keyed by component index, with
// magnitude set explicitly.
func makeRow(magnitude uint32, first int8, ampAt map[int]complexIQ) []byte {
	var real, imag [DftNumComponents]int16
	for idx, c := range ampAt {
		real[idx] = c.re
		imag[idx] = c.im
	}
	return dftRowBytes(0, magnitude, real, imag, first, first+DftNumComponents-1, first+DftNumComponents/2, 0)
}

type complexIQ struct{ re, im int16 }
