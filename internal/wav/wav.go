// Package wav writes mono IEEE-float WAV files for diagnostic recordings.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	headerSize     = 44
	bitsPerSample  = 32
	ieeeFloatID    = 3
	numChannels    = 1
	bytesPerSample = bitsPerSample / 8
)

// WriteF32Mono writes samples as a mono 32-bit IEEE-float WAV stream.
func WriteF32Mono(w io.Writer, sampleRate uint32, samples []float32) error {
	dataSize := uint32(len(samples) * bytesPerSample)
	byteRate := sampleRate * numChannels * bytesPerSample

	var header [headerSize]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], ieeeFloatID)
	binary.LittleEndian.PutUint16(header[22:24], numChannels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], numChannels*bytesPerSample)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}

	buf := make([]byte, 4)
	for _, s := range samples {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(s))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to write WAV data: %w", err)
		}
	}
	return nil
}

// SaveF32Mono writes samples to path, creating or truncating the file.
func SaveF32Mono(path string, sampleRate uint32, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	if err := WriteF32Mono(f, sampleRate, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
