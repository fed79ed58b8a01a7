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

// Package smf reads the timing information of a standard MIDI file.
//
// This is not a general MIDI parser. Synthesis is delegated to an external
// program and the only information the conversion pipeline needs from the
// MIDI byte stream itself is the tempo map and the loop markers. The reader
// therefore walks every track event only to track absolute tick positions,
// recording Set Tempo meta events and the Marker meta events that denote
// loop boundaries, and skips everything else.
//
// A file that cannot be parsed degrades to "default tempo, no loop" rather
// than failing. A malformed MIDI file is still renderable by the external
// synthesizer so the conversion must carry on without loop information.
package smf

import (
	"os"
	"sort"
	"strings"

	"github.com/hautbois/agbsound/curated"
	"github.com/hautbois/agbsound/logger"
)

const logTag = "smf"

// sentinel errors for the smf package
const (
	NotAMidiFile = "smf: not a midi file (%s)"
	Truncated    = "smf: truncated file"
)

// DefaultMicrosecondsPerBeat is the tempo assumed before the first Set Tempo
// event. 120 beats per minute.
const DefaultMicrosecondsPerBeat = 500000

// DefaultTicksPerBeat is the division used when the header cannot be read.
const DefaultTicksPerBeat = 480

// TempoChange records a Set Tempo event at an absolute tick position.
type TempoChange struct {
	Tick                int
	MicrosecondsPerBeat int
}

// File is the timing information of one MIDI file. LoopStartTick and
// LoopEndTick are -1 when the corresponding marker is absent.
type File struct {
	TicksPerBeat  int
	Tempos        []TempoChange
	LoopStartTick int
	LoopEndTick   int
}

func newFile() *File {
	return &File{
		TicksPerBeat:  DefaultTicksPerBeat,
		Tempos:        []TempoChange{{Tick: 0, MicrosecondsPerBeat: DefaultMicrosecondsPerBeat}},
		LoopStartTick: -1,
		LoopEndTick:   -1,
	}
}

// HasLoop returns true if the file carries a usable loop. Both markers must
// be present and the end marker must fall after the start marker.
func (fl *File) HasLoop() bool {
	return fl.LoopStartTick >= 0 && fl.LoopEndTick > fl.LoopStartTick
}

// TickToSample converts an absolute tick position to a sample count at the
// given sample rate, accumulating elapsed time segment by segment through
// the tempo map. The result is truncated, not rounded.
func (fl *File) TickToSample(tick int, sampleRate int) int {
	seconds := 0.0
	tempo := DefaultMicrosecondsPerBeat
	prev := 0

	for _, tc := range fl.Tempos {
		if tc.Tick >= tick {
			break
		}
		seconds += float64(tc.Tick-prev) / float64(fl.TicksPerBeat) * float64(tempo) / 1e6
		prev = tc.Tick
		tempo = tc.MicrosecondsPerBeat
	}
	seconds += float64(tick-prev) / float64(fl.TicksPerBeat) * float64(tempo) / 1e6

	return int(seconds * float64(sampleRate))
}

// ReadFile reads the timing information of the MIDI file at path. It never
// fails: unreadable or malformed files return the default timing of 120 BPM
// with no loop, with the reason logged.
func ReadFile(path string) *File {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Logf(logger.Allow, logTag, "%s: %v. using default timing", path, err)
		return newFile()
	}
	return Read(data)
}

// Read is like ReadFile but works on an in-memory MIDI byte stream.
func Read(data []byte) *File {
	fl, err := parse(data)
	if err != nil {
		logger.Logf(logger.Allow, logTag, "%v. using default timing", err)
		return newFile()
	}
	return fl
}

// byteReader walks a byte slice with a sticky error. once an error is raised
// every subsequent read returns zero values.
type byteReader struct {
	data []byte
	pos  int
	err  error
}

func (r *byteReader) u8() byte {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.data) {
		r.err = curated.Errorf(Truncated)
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *byteReader) u16() int {
	hi := r.u8()
	lo := r.u8()
	return int(hi)<<8 | int(lo)
}

func (r *byteReader) u32() int {
	v := r.u16()
	return v<<16 | r.u16()
}

func (r *byteReader) fourcc() string {
	if r.err != nil || r.pos+4 > len(r.data) {
		if r.err == nil {
			r.err = curated.Errorf(Truncated)
		}
		return ""
	}
	v := string(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

// varint reads a MIDI variable-length quantity. the encoding caps at four
// bytes so a runaway high bit is treated as truncation.
func (r *byteReader) varint() int {
	v := 0
	for i := 0; i < 4; i++ {
		b := r.u8()
		v = v<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			return v
		}
	}
	if r.err == nil {
		r.err = curated.Errorf(Truncated)
	}
	return 0
}

func (r *byteReader) skip(n int) {
	if r.err != nil {
		return
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = curated.Errorf(Truncated)
		return
	}
	r.pos += n
}

func (r *byteReader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.pos+n > len(r.data) {
		if r.err == nil {
			r.err = curated.Errorf(Truncated)
		}
		return nil
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v
}

func parse(data []byte) (*File, error) {
	r := &byteReader{data: data}

	if r.fourcc() != "MThd" {
		return nil, curated.Errorf(NotAMidiFile, "no MThd header")
	}
	headerLen := r.u32()
	if r.err == nil && headerLen < 6 {
		return nil, curated.Errorf(NotAMidiFile, "short MThd header")
	}

	_ = r.u16() // format
	numTracks := r.u16()
	division := r.u16()
	r.skip(headerLen - 6)

	if r.err != nil {
		return nil, r.err
	}

	// SMPTE division is never produced by the tools this pipeline ingests
	if division&0x8000 != 0 {
		return nil, curated.Errorf(NotAMidiFile, "SMPTE division")
	}
	if division == 0 {
		return nil, curated.Errorf(NotAMidiFile, "zero division")
	}

	fl := newFile()
	fl.TicksPerBeat = division
	fl.Tempos = fl.Tempos[:0]

	for t := 0; t < numTracks; t++ {
		if err := parseTrack(r, fl); err != nil {
			return nil, err
		}
	}

	// events are walked per track so tempo changes from later tracks may
	// arrive out of tick order
	sort.SliceStable(fl.Tempos, func(i, j int) bool {
		return fl.Tempos[i].Tick < fl.Tempos[j].Tick
	})

	if len(fl.Tempos) == 0 {
		fl.Tempos = append(fl.Tempos, TempoChange{Tick: 0, MicrosecondsPerBeat: DefaultMicrosecondsPerBeat})
	}

	return fl, nil
}

func parseTrack(r *byteReader, fl *File) error {
	if r.fourcc() != "MTrk" {
		if r.err != nil {
			return r.err
		}
		return curated.Errorf(NotAMidiFile, "no MTrk header")
	}
	trackLen := r.u32()
	end := r.pos + trackLen

	tick := 0
	runningStatus := byte(0)

	for r.err == nil && r.pos < end {
		tick += r.varint()

		status := r.u8()
		if status < 0x80 {
			// running status. the byte just read is the first data byte
			if runningStatus == 0 {
				return curated.Errorf(NotAMidiFile, "data byte without status")
			}
			r.pos--
			status = runningStatus
		}

		switch {
		case status == 0xff:
			metaType := r.u8()
			length := r.varint()
			payload := r.bytes(length)

			switch metaType {
			case 0x51: // set tempo
				if len(payload) == 3 {
					fl.Tempos = append(fl.Tempos, TempoChange{
						Tick:                tick,
						MicrosecondsPerBeat: int(payload[0])<<16 | int(payload[1])<<8 | int(payload[2]),
					})
				}
			case 0x06: // marker
				text := string(payload)
				if strings.Contains(text, "[") || strings.Contains(text, "loopStart") {
					fl.LoopStartTick = tick
				} else if strings.Contains(text, "]") || strings.Contains(text, "loopEnd") {
					fl.LoopEndTick = tick
				}
			}

		case status == 0xf0 || status == 0xf7:
			r.skip(r.varint())

		default:
			runningStatus = status
			switch status & 0xf0 {
			case 0xc0, 0xd0:
				r.skip(1)
			default:
				r.skip(2)
			}
		}
	}

	if r.err != nil {
		return r.err
	}
	if r.pos != end {
		return curated.Errorf(NotAMidiFile, "track event overran chunk")
	}
	return nil
}
