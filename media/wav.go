package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

// WAVDuration reads the duration from a RIFF/WAVE header without decoding samples.
func WAVDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var hdr [12]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return 0, errNotWAV
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return 0, errNotWAV
	}

	var byteRate uint32
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return 0, fmt.Errorf("wav %s: no data chunk", path)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		switch id {
		case "fmt ":
			// Only the first 16 bytes matter; extensions are skipped, whatever size is claimed.
			var buf [16]byte
			if size < 16 {
				return 0, fmt.Errorf("wav %s: short fmt chunk", path)
			}
			if _, err := io.ReadFull(f, buf[:]); err != nil {
				return 0, fmt.Errorf("wav %s: short fmt chunk", path)
			}
			byteRate = binary.LittleEndian.Uint32(buf[8:12])
			if _, err := f.Seek(int64(size)-16+int64(size%2), io.SeekCurrent); err != nil {
				return 0, err
			}
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("wav %s: data before fmt", path)
			}
			// Streaming writers leave the size at 0 or 0xFFFFFFFF; use the file size instead.
			if size == 0 || size == 0xFFFFFFFF {
				pos, _ := f.Seek(0, io.SeekCurrent)
				info, err := f.Stat()
				if err != nil {
					return 0, err
				}
				size = uint32(info.Size() - pos)
			}
			return float64(size) / float64(byteRate), nil
		default:
			if _, err := f.Seek(int64(size)+int64(size%2), io.SeekCurrent); err != nil {
				return 0, err
			}
		}
	}
}

// WriteSilence writes a 16-bit mono PCM WAV of the given length.
func WriteSilence(w io.Writer, seconds float64, sampleRate int) error {
	samples := int(seconds * float64(sampleRate))
	dataSize := uint32(samples * 2)
	hdr := make([]byte, 44)
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], 36+dataSize)
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], 1) // mono
	binary.LittleEndian.PutUint32(hdr[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(hdr[32:], 2)
	binary.LittleEndian.PutUint16(hdr[34:], 16)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], dataSize)
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(make([]byte, dataSize))
	return err
}

// WriteSilenceFile is WriteSilence into a new file at path.
func WriteSilenceFile(path string, seconds float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSilence(f, seconds, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
