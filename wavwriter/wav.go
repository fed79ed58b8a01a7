// This file is part of agbsound.
//
// agbsound is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// agbsound is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with agbsound.  If not, see <https://www.gnu.org/licenses/>.

// Package wavwriter writes rendered song audio to disk as a WAV file. Note
// that audio data is buffered in memory in its entirety, and written to disk
// by EndMixing().
//
// The output is 16-bit stereo PCM. When a loop has been set the file carries
// a sampler chunk recording the loop region, the convention game engines and
// audio tools use for WAV loop points. The chunk is serialized by hand
// because the WAV encoding packages otherwise used in this project can write
// sample data but not sampler chunks.
package wavwriter

import (
	"bufio"
	"encoding/binary"
	"os"

	"github.com/hautbois/agbsound/curated"
	"github.com/hautbois/agbsound/logger"
)

const logTag = "wavwriter"

// fixed sampler chunk fields
const (
	smplUnityNote    = 60
	smplInfinitePlay = 0
)

// WavWriter accumulates stereo audio for a single WAV file.
type WavWriter struct {
	filename   string
	sampleRate int
	buffer     []int16

	loopStart int
	loopEnd   int
}

// New is the preferred method of initialisation for the WavWriter type.
func New(filename string, sampleRate int) (*WavWriter, error) {
	aw := &WavWriter{
		filename:   filename,
		sampleRate: sampleRate,
		buffer:     make([]int16, 0),
		loopStart:  -1,
		loopEnd:    -1,
	}

	return aw, nil
}

// SetAudio appends a block of float PCM. The left and right channels must be
// the same length. Values outside [-1, 1] are clipped.
func (aw *WavWriter) SetAudio(left []float32, right []float32) error {
	if len(left) != len(right) {
		return curated.Errorf("wavwriter: %v", "unbalanced stereo channels")
	}

	for i := range left {
		aw.buffer = append(aw.buffer, quantize(left[i]), quantize(right[i]))
	}

	return nil
}

// SetLoop records the loop region in sample frames, end exclusive. The
// region is embedded in a sampler chunk by EndMixing().
func (aw *WavWriter) SetLoop(startFrame int, endFrame int) {
	aw.loopStart = startFrame
	aw.loopEnd = endFrame
}

// NumFrames returns the number of stereo frames accumulated so far.
func (aw *WavWriter) NumFrames() int {
	return len(aw.buffer) / 2
}

// EndMixing writes the accumulated audio to disk.
func (aw *WavWriter) EndMixing() (rerr error) {
	f, err := os.Create(aw.filename)
	if err != nil {
		return curated.Errorf("wavwriter: %v", err)
	}
	defer func() {
		err := f.Close()
		if err != nil {
			rerr = curated.Errorf("wavwriter: %v", err)
		}
	}()

	logger.Logf(logger.Allow, logTag, "writing audio to %s", aw.filename)

	w := bufio.NewWriter(f)
	if err := aw.write(w); err != nil {
		return curated.Errorf("wavwriter: %v", err)
	}
	if err := w.Flush(); err != nil {
		return curated.Errorf("wavwriter: %v", err)
	}

	return nil
}

func (aw *WavWriter) hasLoop() bool {
	return aw.loopStart >= 0 && aw.loopEnd > aw.loopStart
}

func (aw *WavWriter) write(w *bufio.Writer) error {
	const (
		fmtChunkSize  = 16
		smplChunkSize = 36 + 24
	)

	dataSize := len(aw.buffer) * 2
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)
	if aw.hasLoop() {
		riffSize += 8 + smplChunkSize
	}

	cw := &chunkWriter{w: w}

	cw.fourcc("RIFF")
	cw.u32(uint32(riffSize))
	cw.fourcc("WAVE")

	cw.fourcc("fmt ")
	cw.u32(fmtChunkSize)
	cw.u16(1) // PCM
	cw.u16(2) // stereo
	cw.u32(uint32(aw.sampleRate))
	cw.u32(uint32(aw.sampleRate * 4)) // bytes per second
	cw.u16(4)                         // frame size in bytes
	cw.u16(16)                        // bits per sample

	if aw.hasLoop() {
		cw.fourcc("smpl")
		cw.u32(smplChunkSize)
		cw.u32(0) // manufacturer
		cw.u32(0) // product
		cw.u32(uint32(1e9 / aw.sampleRate))
		cw.u32(smplUnityNote)
		cw.u32(0) // pitch fraction
		cw.u32(0) // SMPTE format
		cw.u32(0) // SMPTE offset
		cw.u32(1) // one loop record
		cw.u32(0) // no sampler specific data

		cw.u32(0) // cue point ID
		cw.u32(0) // forward loop
		cw.u32(uint32(aw.loopStart))
		cw.u32(uint32(aw.loopEnd - 1)) // stored inclusive
		cw.u32(0)                      // fraction
		cw.u32(smplInfinitePlay)
	}

	cw.fourcc("data")
	cw.u32(uint32(dataSize))
	for _, v := range aw.buffer {
		cw.i16(v)
	}

	return cw.err
}

func quantize(v float32) int16 {
	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return int16(v * 32767)
}

// chunkWriter serializes little-endian fields with a sticky error.
type chunkWriter struct {
	w   *bufio.Writer
	err error
}

func (cw *chunkWriter) fourcc(s string) {
	if cw.err != nil {
		return
	}
	_, cw.err = cw.w.WriteString(s)
}

func (cw *chunkWriter) u16(v uint16) {
	if cw.err != nil {
		return
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, cw.err = cw.w.Write(b[:])
}

func (cw *chunkWriter) u32(v uint32) {
	if cw.err != nil {
		return
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, cw.err = cw.w.Write(b[:])
}

func (cw *chunkWriter) i16(v int16) {
	cw.u16(uint16(v))
}
