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

// Package extractor coordinates the full sound-asset extraction run.
//
// The pipeline stages are owned by their own packages; the extractor wires
// them together. Voicegroup and song configuration are parsed up front and
// the soundfont is built once, both fatally on failure because nothing
// downstream can proceed without them. Per-song conversion failures are
// recorded and skipped so one bad song never aborts the batch.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hautbois/agbsound/convert"
	"github.com/hautbois/agbsound/curated"
	"github.com/hautbois/agbsound/encoder"
	"github.com/hautbois/agbsound/logger"
	"github.com/hautbois/agbsound/pcm"
	"github.com/hautbois/agbsound/songconfig"
	"github.com/hautbois/agbsound/soundbank"
	"github.com/hautbois/agbsound/synth"
	"github.com/hautbois/agbsound/voicegroup"
)

const logTag = "extractor"

// sentinel errors for the extractor package
const (
	SetupError = "extractor: %v"
)

// Options gathers every input and output location of an extraction run.
type Options struct {
	// song inputs
	SongDir      string
	SongListPath string
	MixPath      string

	// instrument inputs
	VoicegroupDir     string
	KeysplitTablePath string
	SampleDir         string
	WaveDir           string

	// standalone sound effects, copied through with sidecars. optional
	SfxDir string

	// outputs
	OutputDir     string
	SoundfontPath string

	SampleRate int
}

// Summary is the outcome of one extraction run.
type Summary struct {
	Voicegroups int
	Songs       int
	Converted   int
	Failed      int
	Sfx         int

	// one entry per failed song or effect
	Errors []string
}

func (sm *Summary) String() string {
	s := strings.Builder{}
	s.WriteString(fmt.Sprintf("%d voicegroups, %d songs: %d converted, %d failed, %d sound effects",
		sm.Voicegroups, sm.Songs, sm.Converted, sm.Failed, sm.Sfx))
	for _, e := range sm.Errors {
		s.WriteString("\n\t")
		s.WriteString(e)
	}
	return s.String()
}

// sidecar is the JSON definition emitted next to every audio asset. The
// loop fields mirror convert.Result exactly.
type sidecar struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	Volume     float64 `json:"volume"`
	Loop       bool    `json:"loop"`
	LoopStart  int     `json:"loopStart,omitempty"`
	LoopLength int     `json:"loopLength,omitempty"`
}

// Extractor is the orchestrator of one extraction run.
type Extractor struct {
	opts Options

	voicegroups *voicegroup.DB
	songs       *songconfig.DB

	synth   synth.Synthesizer
	encoder encoder.Encoder
}

// NewExtractor parses all configuration up front. A parse failure here is
// fatal: without the instrument tables there is nothing to extract.
func NewExtractor(opts Options) (*Extractor, error) {
	if opts.SampleRate == 0 {
		opts.SampleRate = convert.DefaultSampleRate
	}
	if opts.SoundfontPath == "" {
		opts.SoundfontPath = filepath.Join(opts.OutputDir, "soundbank.sf2")
	}

	ex := &Extractor{
		opts:        opts,
		voicegroups: voicegroup.NewDB(),
		songs:       songconfig.NewDB(),
		synth:       synth.NewFluidSynth(),
		encoder:     encoder.NewFFmpeg(),
	}

	if err := ex.voicegroups.ParseAll(opts.VoicegroupDir, opts.KeysplitTablePath); err != nil {
		return nil, curated.Errorf(SetupError, err)
	}
	if err := ex.songs.ParseAll(opts.SongDir, opts.SongListPath, opts.MixPath); err != nil {
		return nil, curated.Errorf(SetupError, err)
	}

	return ex, nil
}

// SetSynthesizer replaces the fluidsynth subprocess synthesizer.
func (ex *Extractor) SetSynthesizer(sy synth.Synthesizer) {
	ex.synth = sy
}

// SetEncoder replaces the ffmpeg subprocess encoder.
func (ex *Extractor) SetEncoder(enc encoder.Encoder) {
	ex.encoder = enc
}

// Run performs the extraction: soundfont assembly, per-song conversion and
// the sound-effect pass. The returned error is reserved for fatal problems
// with the run as a whole; per-song failures are reported in the Summary.
func (ex *Extractor) Run(ctx context.Context) (*Summary, error) {
	sm := &Summary{}

	if err := os.MkdirAll(ex.opts.OutputDir, 0755); err != nil {
		return nil, curated.Errorf(SetupError, err)
	}

	as := soundbank.NewAssembler(filepath.Base(ex.opts.SoundfontPath), ex.voicegroups, soundbank.Options{
		SampleDir: ex.opts.SampleDir,
		WaveDir:   ex.opts.WaveDir,
	})

	for _, vg := range ex.songs.UsedVoicegroups() {
		if err := as.AddVoicegroup(vg); err != nil {
			// a missing voicegroup fails its songs later, not the bank
			logger.Logf(logger.Allow, logTag, "%v", err)
			continue
		}
		sm.Voicegroups++
	}

	if err := as.Soundfont().Write(ex.opts.SoundfontPath); err != nil {
		return nil, curated.Errorf(SetupError, err)
	}

	ex.convertSongs(ctx, sm)
	ex.convertSfx(sm)

	logger.Logf(logger.Allow, logTag, "%s", sm)

	return sm, nil
}

func (ex *Extractor) convertSongs(ctx context.Context, sm *Summary) {
	cv := convert.NewConverter(ex.synth, ex.encoder, ex.opts.SoundfontPath)
	cv.SampleRate = ex.opts.SampleRate

	for _, song := range ex.songs.Songs() {
		sm.Songs++

		midiPath := filepath.Join(ex.opts.SongDir, song.Name+".mid")
		if song.AssemblyPath != "" {
			midiPath = filepath.Join(ex.opts.SongDir, song.AssemblyPath)
		}
		outputPath := filepath.Join(ex.opts.OutputDir, song.Name+".ogg")

		cv.Volume = song.NormalizedVolume()
		res := cv.Convert(ctx, midiPath, outputPath)

		if !res.Success {
			sm.Failed++
			sm.Errors = append(sm.Errors, fmt.Sprintf("%s: conversion failed", song.Name))
			continue
		}
		sm.Converted++

		// a failed encode leaves the staged WAV as the artifact
		artifact := outputPath
		if _, err := os.Stat(outputPath); err != nil {
			artifact = filepath.Join(ex.opts.OutputDir, song.Name+".wav")
		}

		if err := ex.writeSidecar(song.Name, artifact, song.NormalizedVolume(), res); err != nil {
			logger.Logf(logger.Allow, logTag, "%s: %v", song.Name, err)
		}
	}
}

// convertSfx copies standalone WAV effects to the output directory, each
// with a sidecar carrying any loop the file itself declares.
func (ex *Extractor) convertSfx(sm *Summary) {
	if ex.opts.SfxDir == "" {
		return
	}

	entries, err := os.ReadDir(ex.opts.SfxDir)
	if err != nil {
		logger.Logf(logger.Allow, logTag, "sfx: %v", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}

		src := filepath.Join(ex.opts.SfxDir, entry.Name())
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		dst := filepath.Join(ex.opts.OutputDir, entry.Name())

		s, err := pcm.Load(src)
		if err != nil {
			sm.Failed++
			sm.Errors = append(sm.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}

		if err := copyFile(src, dst); err != nil {
			sm.Failed++
			sm.Errors = append(sm.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}

		res := convert.Result{Success: true, SampleRate: s.SampleRate}
		if s.LoopStart >= 0 && s.LoopEnd > s.LoopStart {
			res.LoopStartSamples = s.LoopStart
			res.LoopLengthSamples = s.LoopEnd - s.LoopStart
		}

		if err := ex.writeSidecar(base, dst, 1.0, res); err != nil {
			logger.Logf(logger.Allow, logTag, "%s: %v", entry.Name(), err)
		}

		sm.Sfx++
	}
}

func (ex *Extractor) writeSidecar(id string, artifact string, volume float64, res convert.Result) error {
	sc := sidecar{
		ID:     id,
		Name:   id,
		Path:   filepath.Base(artifact),
		Volume: volume,
		Loop:   res.LoopLengthSamples > 0,
	}
	if sc.Loop {
		sc.LoopStart = res.LoopStartSamples
		sc.LoopLength = res.LoopLengthSamples
	}

	d, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(ex.opts.OutputDir, id+".json"), d, 0644)
}

func copyFile(src string, dst string) error {
	d, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, d, 0644)
}
