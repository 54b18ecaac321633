// Package audio merges per-chunk vendor output into a single playable
// buffer. MP3 streams concatenate naively; WAV containers carry their size
// in the RIFF header, so merged files need the header's size fields
// rewritten or players stop at the first chunk.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const riffHeaderSize = 12

var ErrNotWAV = errors.New("buffer is not a RIFF/WAVE container")

// Merge combines ordered audio buffers of the given format. Formats without
// header-encoded sizes are concatenated as-is.
func Merge(format string, buffers [][]byte) ([]byte, error) {
	switch len(buffers) {
	case 0:
		return nil, errors.New("no audio buffers to merge")
	case 1:
		return buffers[0], nil
	}

	if format == "wav" {
		return mergeWAV(buffers)
	}

	var out bytes.Buffer
	for _, b := range buffers {
		out.Write(b)
	}
	return out.Bytes(), nil
}

// mergeWAV keeps the first buffer's fmt chunk, appends every buffer's PCM
// payload, and rewrites the RIFF and data chunk sizes.
func mergeWAV(buffers [][]byte) ([]byte, error) {
	header, first, err := splitWAV(buffers[0])
	if err != nil {
		return nil, fmt.Errorf("merge wav chunk 0: %w", err)
	}

	var data bytes.Buffer
	data.Write(first)
	for i, b := range buffers[1:] {
		_, payload, err := splitWAV(b)
		if err != nil {
			return nil, fmt.Errorf("merge wav chunk %d: %w", i+1, err)
		}
		data.Write(payload)
	}

	out := make([]byte, len(header)+data.Len())
	copy(out, header)
	copy(out[len(header):], data.Bytes())

	// RIFF chunk size = file size minus the 8-byte RIFF id+size prefix
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)-8))
	// data chunk size sits in the last 4 header bytes, just before payload
	binary.LittleEndian.PutUint32(out[len(header)-4:len(header)], uint32(data.Len()))

	return out, nil
}

// splitWAV returns everything up to and including the data chunk header, and
// the data payload. Chunks between fmt and data (LIST, fact) stay in the
// header of the first buffer and are skipped in the rest.
func splitWAV(b []byte) (header, payload []byte, err error) {
	if len(b) < riffHeaderSize || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, nil, ErrNotWAV
	}

	off := riffHeaderSize
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		if id == "data" {
			end := off + 8 + size
			if end > len(b) {
				end = len(b)
			}
			return b[:off+8], b[off+8 : end], nil
		}
		off += 8 + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}

	return nil, nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}
