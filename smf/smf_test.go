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

package smf_test

import (
	"testing"

	"github.com/hautbois/agbsound/smf"
	"github.com/hautbois/agbsound/test"
)

// midiFile assembles a type-0 MIDI byte stream from pre-built track bodies.
func midiFile(ticksPerBeat int, tracks ...[]byte) []byte {
	d := []byte{
		'M', 'T', 'h', 'd',
		0, 0, 0, 6,
		0, 0,
		0, byte(len(tracks)),
		byte(ticksPerBeat >> 8), byte(ticksPerBeat),
	}
	for _, trk := range tracks {
		d = append(d, 'M', 'T', 'r', 'k',
			byte(len(trk)>>24), byte(len(trk)>>16), byte(len(trk)>>8), byte(len(trk)))
		d = append(d, trk...)
	}
	return d
}

func varint(v int) []byte {
	if v < 0x80 {
		return []byte{byte(v)}
	}
	return []byte{byte(v>>7) | 0x80, byte(v & 0x7f)}
}

func tempoEvent(delta int, usPerBeat int) []byte {
	e := varint(delta)
	return append(e, 0xff, 0x51, 3, byte(usPerBeat>>16), byte(usPerBeat>>8), byte(usPerBeat))
}

func markerEvent(delta int, text string) []byte {
	e := varint(delta)
	e = append(e, 0xff, 0x06, byte(len(text)))
	return append(e, text...)
}

func endOfTrack(delta int) []byte {
	e := varint(delta)
	return append(e, 0xff, 0x2f, 0)
}

func concat(events ...[]byte) []byte {
	var trk []byte
	for _, e := range events {
		trk = append(trk, e...)
	}
	return trk
}

func TestLoopMarkers(t *testing.T) {
	fl := smf.Read(midiFile(480, concat(
		markerEvent(100, "["),
		markerEvent(400, "]"),
		endOfTrack(0),
	)))

	test.ExpectEquality(t, fl.TicksPerBeat, 480)
	test.ExpectEquality(t, fl.LoopStartTick, 100)
	test.ExpectEquality(t, fl.LoopEndTick, 500)
	test.ExpectEquality(t, fl.HasLoop(), true)
}

func TestLoopMarkerText(t *testing.T) {
	fl := smf.Read(midiFile(480, concat(
		markerEvent(10, "loopStart"),
		markerEvent(10, "loopEnd"),
		endOfTrack(0),
	)))

	test.ExpectEquality(t, fl.LoopStartTick, 10)
	test.ExpectEquality(t, fl.LoopEndTick, 20)
}

func TestLastMarkerWins(t *testing.T) {
	fl := smf.Read(midiFile(480, concat(
		markerEvent(100, "["),
		markerEvent(100, "["),
		endOfTrack(0),
	)))

	test.ExpectEquality(t, fl.LoopStartTick, 200)
	test.ExpectEquality(t, fl.HasLoop(), false)
}

func TestTickToSampleScenario(t *testing.T) {
	// constant 120 BPM, markers at tick 100 and 500, 480 ticks per beat
	fl := smf.Read(midiFile(480, concat(
		tempoEvent(0, 500000),
		markerEvent(100, "["),
		markerEvent(400, "]"),
		endOfTrack(0),
	)))

	start := fl.TickToSample(fl.LoopStartTick, 44100)
	end := fl.TickToSample(fl.LoopEndTick, 44100)

	// 100/480 beats at half a second per beat is 4593.75 samples, truncated
	test.ExpectEquality(t, start, 4593)
	test.ExpectEquality(t, end-start, 18375)
}

func TestTickToSampleTempoMap(t *testing.T) {
	// tempo halves to 240 BPM at tick 480
	fl := smf.Read(midiFile(480, concat(
		tempoEvent(0, 500000),
		tempoEvent(480, 250000),
		endOfTrack(0),
	)))

	// one beat at 120 BPM then one beat at 240 BPM
	test.ExpectEquality(t, fl.TickToSample(960, 44100), 22050+11025)

	// a tempo change at the target tick itself does not contribute
	test.ExpectEquality(t, fl.TickToSample(480, 44100), 22050)
}

func TestTickToSampleIdempotence(t *testing.T) {
	fl := smf.Read(midiFile(480, concat(
		tempoEvent(0, 500000),
		tempoEvent(200, 300000),
		endOfTrack(0),
	)))

	test.ExpectEquality(t, fl.TickToSample(0, 44100), 0)
	test.ExpectEquality(t, fl.TickToSample(700, 44100), fl.TickToSample(700, 44100))
}

func TestDefaultTempo(t *testing.T) {
	fl := smf.Read(midiFile(480, endOfTrack(0)))

	test.DemandEquality(t, len(fl.Tempos), 1)
	test.ExpectEquality(t, fl.Tempos[0].Tick, 0)
	test.ExpectEquality(t, fl.Tempos[0].MicrosecondsPerBeat, smf.DefaultMicrosecondsPerBeat)
	test.ExpectEquality(t, fl.HasLoop(), false)
}

func TestRunningStatus(t *testing.T) {
	// note-on with running status reuse, then a marker whose tick position
	// depends on the deltas having been consumed correctly
	trk := concat(
		[]byte{0, 0x90, 60, 100}, // note on at tick 0
		[]byte{50, 62, 100},      // running status note on at tick 50
		markerEvent(50, "["),
		markerEvent(100, "]"),
		endOfTrack(0),
	)

	fl := smf.Read(midiFile(480, trk))
	test.ExpectEquality(t, fl.LoopStartTick, 100)
	test.ExpectEquality(t, fl.LoopEndTick, 200)
}

func TestMultiTrackTempoOrder(t *testing.T) {
	// tempo events split across tracks must merge in tick order
	fl := smf.Read(midiFile(480,
		concat(tempoEvent(480, 250000), endOfTrack(0)),
		concat(tempoEvent(0, 500000), endOfTrack(0)),
	))

	test.DemandEquality(t, len(fl.Tempos), 2)
	test.ExpectEquality(t, fl.Tempos[0].Tick, 0)
	test.ExpectEquality(t, fl.Tempos[1].Tick, 480)
}

func TestMalformedDegrades(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("not a midi file"),
		midiFile(480)[:10],
		midiFile(480, []byte{0x85}), // runaway delta, truncated track
	} {
		fl := smf.Read(data)
		test.ExpectEquality(t, fl.TicksPerBeat, smf.DefaultTicksPerBeat)
		test.ExpectEquality(t, fl.HasLoop(), false)
		test.DemandEquality(t, len(fl.Tempos), 1)
		test.ExpectEquality(t, fl.Tempos[0].MicrosecondsPerBeat, smf.DefaultMicrosecondsPerBeat)
	}
}
