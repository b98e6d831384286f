package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	wavHeaderSize = 44
	// WAVE_FORMAT_EXTENSIBLE is the largest fmt chunk in use
	maxFmtChunkSize = 40
)

// ErrNotWAV is returned by ParseWAV for input that is not a PCM RIFF/WAVE stream
var ErrNotWAV = errors.New("not a WAV file")

// Format describes the PCM layout of a WAV stream
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int64
}

// Duration is the playing time of the data chunk
func (f Format) Duration() time.Duration {
	bytesPerSecond := int64(f.SampleRate * f.Channels * f.BitsPerSample / 8)
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(f.DataSize * int64(time.Second) / bytesPerSecond)
}

// IsAzureReady reports whether the stream can be sent to Azure as is
func (f Format) IsAzureReady() bool {
	return f.SampleRate == SampleRate && f.Channels == Channels && f.BitsPerSample == BitsPerSample
}

// WrapPCMAsWAV wraps raw little-endian PCM data in a WAV header
func WrapPCMAsWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	wav := make([]byte, wavHeaderSize+dataSize)

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")

	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(wav[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(wav[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(wav[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:36], uint16(bitsPerSample))

	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[44:], pcm)

	return wav
}

// ParseWAV reads chunk headers until the data chunk and returns the format.
// Chunks other than "fmt " and "data" (LIST, fact, ...) are skipped.
func ParseWAV(r io.Reader) (Format, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, ErrNotWAV
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, ErrNotWAV
	}

	var (
		format  Format
		haveFmt bool
		chunk   [8]byte
	)
	for {
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Format{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			if size > maxFmtChunkSize {
				return Format{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrNotWAV, size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 && tag != 0xFFFE {
				return Format{}, fmt.Errorf("%w: unsupported encoding %d", ErrNotWAV, tag)
			}
			format.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			format.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			format.DataSize = size
			return format, nil
		default:
			// chunks are word aligned
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return Format{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
			}
		}
		if id == "fmt " && size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return Format{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
			}
		}
	}
}

// ParseWAVFile opens path and parses its header
func ParseWAVFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, err
	}
	defer f.Close()
	return ParseWAV(f)
}
