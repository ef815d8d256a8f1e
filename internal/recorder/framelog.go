package recorder

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// frameLogMagic identifies a raw frame-log container. The format is a
// fixed header (magic, width, height, fps) followed by length-prefixed
// packed-RGBA frames. Container packaging beyond the data itself is out of
// scope; downstream tooling transcodes.
var frameLogMagic = [4]byte{'P', 'R', 'F', 'L'}

// FrameLog appends frames of a fixed size to a single container file.
// The file is created lazily by the caller once the first frame's
// dimensions are known.
type FrameLog struct {
	f      *os.File
	width  int
	height int
	frames uint64
}

// CreateFrameLog opens path and writes the container header sized to the
// given frame dimensions.
func CreateFrameLog(path string, width, height int, fps float64) (*FrameLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create frame log: %w", err)
	}
	hdr := make([]byte, 0, 24)
	hdr = append(hdr, frameLogMagic[:]...)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(width))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(height))
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(fps*1000))
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("write frame log header: %w", err)
	}
	return &FrameLog{f: f, width: width, height: height}, nil
}

// Append writes one length-prefixed frame.
func (fl *FrameLog) Append(pixels []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(pixels)))
	if _, err := fl.f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := fl.f.Write(pixels); err != nil {
		return fmt.Errorf("write frame data: %w", err)
	}
	fl.frames++
	return nil
}

// Frames returns the number of frames appended so far.
func (fl *FrameLog) Frames() uint64 { return fl.frames }

// Close flushes and closes the container.
func (fl *FrameLog) Close() error {
	if fl.f == nil {
		return nil
	}
	err := fl.f.Close()
	fl.f = nil
	return err
}

// ReadFrameLogHeader parses a container header, returning dimensions and
// fps. Used by tests and transcoding tools.
func ReadFrameLogHeader(r io.Reader) (width, height int, fps float64, err error) {
	hdr := make([]byte, 20)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return 0, 0, 0, fmt.Errorf("read frame log header: %w", err)
	}
	if [4]byte(hdr[:4]) != frameLogMagic {
		return 0, 0, 0, fmt.Errorf("not a frame log: bad magic %q", hdr[:4])
	}
	width = int(binary.LittleEndian.Uint32(hdr[4:8]))
	height = int(binary.LittleEndian.Uint32(hdr[8:12]))
	fps = float64(binary.LittleEndian.Uint64(hdr[12:20])) / 1000
	return width, height, fps, nil
}
