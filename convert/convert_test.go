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

package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hautbois/agbsound/convert"
	"github.com/hautbois/agbsound/pcm"
	"github.com/hautbois/agbsound/test"
)

// stubSynth returns a fixed number of frames, or fails, or panics.
type stubSynth struct {
	frames int
	fail   bool
	panics bool
}

func (s *stubSynth) Render(_ context.Context, _ string, _ string, _ int) ([]float32, []float32, error) {
	if s.panics {
		panic("synthesizer blew up")
	}
	if s.fail {
		return nil, nil, errors.New("render failed")
	}
	return make([]float32, s.frames), make([]float32, s.frames), nil
}

// stubEncoder records its arguments and optionally fails. on success it
// creates the output file the way a real encoder would.
type stubEncoder struct {
	fail bool

	called     bool
	loopStart  int
	loopLength int
}

func (e *stubEncoder) Encode(_ context.Context, wavPath string, outputPath string, loopStart int, loopLength int) error {
	e.called = true
	e.loopStart = loopStart
	e.loopLength = loopLength

	if e.fail {
		return errors.New("encode failed")
	}
	return os.WriteFile(outputPath, []byte("ogg"), 0644)
}

// writeMidi writes a minimal MIDI file, optionally with loop markers at
// ticks 100 and 500 (480 ticks per beat, constant 120 BPM).
func writeMidi(t *testing.T, dir string, loop bool) string {
	t.Helper()

	trk := []byte{0, 0xff, 0x51, 3, 0x07, 0xa1, 0x20} // tempo 500000
	if loop {
		trk = append(trk, 100, 0xff, 0x06, 1, '[')
		trk = append(trk, 0x83, 0x10, 0xff, 0x06, 1, ']') // delta 400
	}
	trk = append(trk, 0, 0xff, 0x2f, 0)

	d := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0x01, 0xe0,
		'M', 'T', 'r', 'k', 0, 0, 0, byte(len(trk)),
	}
	d = append(d, trk...)

	path := filepath.Join(dir, "song.mid")
	test.DemandEquality(t, os.WriteFile(path, d, 0644), nil)
	return path
}

func TestConvertNoLoop(t *testing.T) {
	dir := t.TempDir()
	midiPath := writeMidi(t, dir, false)
	outputPath := filepath.Join(dir, "song.ogg")

	enc := &stubEncoder{}
	cv := convert.NewConverter(&stubSynth{frames: 50000}, enc, "bank.sf2")

	res := cv.Convert(context.Background(), midiPath, outputPath)

	test.ExpectEquality(t, res.Success, true)
	test.ExpectEquality(t, res.LoopStartSamples, 0)
	test.ExpectEquality(t, res.LoopLengthSamples, 0)
	test.ExpectEquality(t, res.SampleRate, convert.DefaultSampleRate)

	test.ExpectEquality(t, enc.called, true)
	test.ExpectEquality(t, enc.loopLength, 0)

	// staged WAV deleted on successful encode, compressed file remains
	_, err := os.Stat(filepath.Join(dir, "song.wav"))
	test.ExpectedFailure(t, err)
	_, err = os.Stat(outputPath)
	test.ExpectedSuccess(t, err)
}

func TestConvertLoop(t *testing.T) {
	dir := t.TempDir()
	midiPath := writeMidi(t, dir, true)
	outputPath := filepath.Join(dir, "song.ogg")

	enc := &stubEncoder{}
	cv := convert.NewConverter(&stubSynth{frames: 50000}, enc, "bank.sf2")

	res := cv.Convert(context.Background(), midiPath, outputPath)

	test.ExpectEquality(t, res.Success, true)
	test.ExpectEquality(t, res.LoopStartSamples, 4593)
	test.ExpectEquality(t, res.LoopLengthSamples, 18375)

	test.ExpectEquality(t, enc.loopStart, 4593)
	test.ExpectEquality(t, enc.loopLength, 18375)
}

func TestConvertEncodeFailureKeepsWav(t *testing.T) {
	dir := t.TempDir()
	midiPath := writeMidi(t, dir, true)
	outputPath := filepath.Join(dir, "song.ogg")

	cv := convert.NewConverter(&stubSynth{frames: 50000}, &stubEncoder{fail: true}, "bank.sf2")

	res := cv.Convert(context.Background(), midiPath, outputPath)

	// a failed encode degrades to the staged WAV, not to failure
	test.ExpectEquality(t, res.Success, true)

	wavPath := filepath.Join(dir, "song.wav")
	s, err := pcm.Load(wavPath)
	test.ExpectedSuccess(t, err)
	test.ExpectEquality(t, s.LoopStart, 4593)
	test.ExpectEquality(t, s.LoopEnd, 4593+18375)
}

func TestConvertSynthFailure(t *testing.T) {
	dir := t.TempDir()
	midiPath := writeMidi(t, dir, false)

	cv := convert.NewConverter(&stubSynth{fail: true}, &stubEncoder{}, "bank.sf2")
	res := cv.Convert(context.Background(), midiPath, filepath.Join(dir, "song.ogg"))

	test.ExpectEquality(t, res.Success, false)
	test.ExpectEquality(t, res.LoopStartSamples, 0)
	test.ExpectEquality(t, res.LoopLengthSamples, 0)
}

func TestConvertPanicIsCaught(t *testing.T) {
	dir := t.TempDir()
	midiPath := writeMidi(t, dir, false)

	cv := convert.NewConverter(&stubSynth{panics: true}, &stubEncoder{}, "bank.sf2")
	res := cv.Convert(context.Background(), midiPath, filepath.Join(dir, "song.ogg"))

	test.ExpectEquality(t, res.Success, false)
}

func TestConvertBufferFloor(t *testing.T) {
	dir := t.TempDir()
	midiPath := writeMidi(t, dir, false)

	// too few rendered frames. the staged WAV is padded to a full second
	cv := convert.NewConverter(&stubSynth{frames: 10}, &stubEncoder{fail: true}, "bank.sf2")
	res := cv.Convert(context.Background(), midiPath, filepath.Join(dir, "song.ogg"))
	test.ExpectEquality(t, res.Success, true)

	s, err := pcm.Load(filepath.Join(dir, "song.wav"))
	test.ExpectedSuccess(t, err)
	test.ExpectEquality(t, len(s.Data), convert.DefaultSampleRate)
}

func TestConvertPadsToLoopEnd(t *testing.T) {
	dir := t.TempDir()
	midiPath := writeMidi(t, dir, true)

	// rendered audio stops short of the loop end marker
	cv := convert.NewConverter(&stubSynth{frames: 5000}, &stubEncoder{fail: true}, "bank.sf2")
	res := cv.Convert(context.Background(), midiPath, filepath.Join(dir, "song.ogg"))
	test.ExpectEquality(t, res.Success, true)

	s, err := pcm.Load(filepath.Join(dir, "song.wav"))
	test.ExpectedSuccess(t, err)
	test.ExpectEquality(t, len(s.Data), convert.DefaultSampleRate)
}
