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

package extractor_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hautbois/agbsound/extractor"
	"github.com/hautbois/agbsound/test"
	"github.com/hautbois/agbsound/wavwriter"
)

type stubSynth struct{}

func (s *stubSynth) Render(_ context.Context, midiPath string, _ string, _ int) ([]float32, []float32, error) {
	if strings.Contains(midiPath, "bad") {
		return nil, nil, errors.New("render failed")
	}
	return make([]float32, 50000), make([]float32, 50000), nil
}

type stubEncoder struct{}

func (e *stubEncoder) Encode(_ context.Context, _ string, outputPath string, _ int, _ int) error {
	return os.WriteFile(outputPath, []byte("ogg"), 0644)
}

const groupFixture = `
voicegroup000::
	voice_square_1 60, 64, 0, 2, 255, 0, 255, 165
	voice_square_2 60, 64, 1, 255, 0, 255, 165
`

const songListFixture = `
song1.mid:
	voicegroup = voicegroup000
`

const mixFixture = `
song1: -V127
`

// writeMidi writes a minimal MIDI file with loop markers at ticks 100 and
// 500 (480 ticks per beat, 120 BPM).
func writeMidi(t *testing.T, path string) {
	t.Helper()

	trk := []byte{0, 0xff, 0x51, 3, 0x07, 0xa1, 0x20}
	trk = append(trk, 100, 0xff, 0x06, 1, '[')
	trk = append(trk, 0x83, 0x10, 0xff, 0x06, 1, ']')
	trk = append(trk, 0, 0xff, 0x2f, 0)

	d := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0x01, 0xe0,
		'M', 'T', 'r', 'k', 0, 0, 0, byte(len(trk)),
	}
	d = append(d, trk...)

	test.DemandEquality(t, os.WriteFile(path, d, 0644), nil)
}

func fixtureOptions(t *testing.T) extractor.Options {
	t.Helper()

	dir := t.TempDir()

	opts := extractor.Options{
		SongDir:           filepath.Join(dir, "songs"),
		SongListPath:      filepath.Join(dir, "songs.cfg"),
		MixPath:           filepath.Join(dir, "mix.cfg"),
		VoicegroupDir:     filepath.Join(dir, "voicegroups"),
		KeysplitTablePath: "",
		SampleDir:         filepath.Join(dir, "samples"),
		WaveDir:           filepath.Join(dir, "waves"),
		OutputDir:         filepath.Join(dir, "out"),
	}

	for _, d := range []string{opts.SongDir, opts.VoicegroupDir, opts.SampleDir, opts.WaveDir} {
		test.DemandEquality(t, os.Mkdir(d, 0755), nil)
	}

	writeMidi(t, filepath.Join(opts.SongDir, "song1.mid"))
	writeMidi(t, filepath.Join(opts.SongDir, "song2.mid"))

	test.DemandEquality(t, os.WriteFile(opts.SongListPath, []byte(songListFixture), 0644), nil)
	test.DemandEquality(t, os.WriteFile(opts.MixPath, []byte(mixFixture), 0644), nil)
	test.DemandEquality(t, os.WriteFile(filepath.Join(opts.VoicegroupDir, "voicegroup000.inc"), []byte(groupFixture), 0644), nil)

	return opts
}

func newFixtureExtractor(t *testing.T, opts extractor.Options) *extractor.Extractor {
	t.Helper()

	ex, err := extractor.NewExtractor(opts)
	test.DemandEquality(t, err, nil)
	ex.SetSynthesizer(&stubSynth{})
	ex.SetEncoder(&stubEncoder{})
	return ex
}

func TestRun(t *testing.T) {
	opts := fixtureOptions(t)
	ex := newFixtureExtractor(t, opts)

	sm, err := ex.Run(context.Background())
	test.DemandEquality(t, err, nil)

	test.ExpectEquality(t, sm.Voicegroups, 1)
	test.ExpectEquality(t, sm.Songs, 2)
	test.ExpectEquality(t, sm.Converted, 2)
	test.ExpectEquality(t, sm.Failed, 0)

	// the soundfont and both songs' artifacts exist
	for _, f := range []string{"soundbank.sf2", "song1.ogg", "song1.json", "song2.ogg", "song2.json"} {
		_, err := os.Stat(filepath.Join(opts.OutputDir, f))
		test.ExpectedSuccess(t, err)
	}
}

func TestSidecar(t *testing.T) {
	opts := fixtureOptions(t)
	ex := newFixtureExtractor(t, opts)

	_, err := ex.Run(context.Background())
	test.DemandEquality(t, err, nil)

	d, err := os.ReadFile(filepath.Join(opts.OutputDir, "song1.json"))
	test.DemandEquality(t, err, nil)

	var sc struct {
		ID         string  `json:"id"`
		Path       string  `json:"path"`
		Volume     float64 `json:"volume"`
		Loop       bool    `json:"loop"`
		LoopStart  int     `json:"loopStart"`
		LoopLength int     `json:"loopLength"`
	}
	test.DemandEquality(t, json.Unmarshal(d, &sc), nil)

	test.ExpectEquality(t, sc.ID, "song1")
	test.ExpectEquality(t, sc.Path, "song1.ogg")
	test.ExpectEquality(t, sc.Volume, 1.0)
	test.ExpectEquality(t, sc.Loop, true)
	test.ExpectEquality(t, sc.LoopStart, 4593)
	test.ExpectEquality(t, sc.LoopLength, 18375)
}

func TestRunContinuesPastFailure(t *testing.T) {
	opts := fixtureOptions(t)
	writeMidi(t, filepath.Join(opts.SongDir, "badsong.mid"))

	ex := newFixtureExtractor(t, opts)

	sm, err := ex.Run(context.Background())
	test.DemandEquality(t, err, nil)

	test.ExpectEquality(t, sm.Songs, 3)
	test.ExpectEquality(t, sm.Converted, 2)
	test.ExpectEquality(t, sm.Failed, 1)
	test.DemandEquality(t, len(sm.Errors), 1)
	test.ExpectEquality(t, strings.Contains(sm.Errors[0], "badsong"), true)
}

func TestSfxPass(t *testing.T) {
	opts := fixtureOptions(t)
	opts.SfxDir = filepath.Join(filepath.Dir(opts.OutputDir), "sfx")
	test.DemandEquality(t, os.Mkdir(opts.SfxDir, 0755), nil)

	// a looped effect produced by the project's own writer
	aw, err := wavwriter.New(filepath.Join(opts.SfxDir, "chime.wav"), 22050)
	test.DemandEquality(t, err, nil)
	test.DemandEquality(t, aw.SetAudio(make([]float32, 1000), make([]float32, 1000)), nil)
	aw.SetLoop(10, 500)
	test.DemandEquality(t, aw.EndMixing(), nil)

	ex := newFixtureExtractor(t, opts)

	sm, err := ex.Run(context.Background())
	test.DemandEquality(t, err, nil)
	test.ExpectEquality(t, sm.Sfx, 1)

	_, err = os.Stat(filepath.Join(opts.OutputDir, "chime.wav"))
	test.ExpectedSuccess(t, err)

	d, err := os.ReadFile(filepath.Join(opts.OutputDir, "chime.json"))
	test.DemandEquality(t, err, nil)

	var sc struct {
		Loop       bool `json:"loop"`
		LoopStart  int  `json:"loopStart"`
		LoopLength int  `json:"loopLength"`
	}
	test.DemandEquality(t, json.Unmarshal(d, &sc), nil)
	test.ExpectEquality(t, sc.Loop, true)
	test.ExpectEquality(t, sc.LoopStart, 10)
	test.ExpectEquality(t, sc.LoopLength, 490)
}

func TestDump(t *testing.T) {
	opts := fixtureOptions(t)
	ex := newFixtureExtractor(t, opts)

	b := &bytes.Buffer{}
	ex.Dump(b)
	test.ExpectEquality(t, b.Len() > 0, true)
	test.ExpectEquality(t, strings.Contains(b.String(), "voicegroup000"), true)
}
