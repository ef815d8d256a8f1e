// Command framelog-info prints the header and frame count of a recorded
// frame-log container.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/posture.report/internal/recorder"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: framelog-info <video.framelog>")
		os.Exit(1)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer f.Close()

	width, height, fps, err := recorder.ReadFrameLogHeader(f)
	if err != nil {
		log.Fatalf("read header: %v", err)
	}

	frames := 0
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if _, err := io.CopyN(io.Discard, f, int64(n)); err != nil {
			break
		}
		frames++
	}

	fmt.Printf("dimensions: %dx%d\n", width, height)
	fmt.Printf("fps:        %.3f\n", fps)
	fmt.Printf("frames:     %d\n", frames)
}
