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

// Package convert turns one MIDI song into a compressed audio file with
// loop metadata.
//
// A conversion reads the MIDI file's own byte stream for its tempo map and
// loop markers, renders the song through an external synthesizer against
// the project soundfont, stages the result as a WAV file with embedded loop
// points and hands that to an external encoder for compression.
//
// The conversion is defensive at its boundary. A failed encode leaves the
// staged WAV as the final artifact, and a panic anywhere in the pipeline is
// caught and reported as a per-song failure so a batch run can continue.
package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hautbois/agbsound/encoder"
	"github.com/hautbois/agbsound/logger"
	"github.com/hautbois/agbsound/smf"
	"github.com/hautbois/agbsound/synth"
	"github.com/hautbois/agbsound/wavwriter"
)

const logTag = "convert"

// DefaultSampleRate for rendered songs.
const DefaultSampleRate = 44100

// Result is the outcome of one conversion. LoopStartSamples and
// LoopLengthSamples are both zero when the song has no loop: the zero pair
// always means "no loop" at this boundary, never a zero-length loop at
// sample 0.
type Result struct {
	Success           bool
	LoopStartSamples  int
	LoopLengthSamples int
	SampleRate        int
}

// Converter renders songs against one soundfont.
type Converter struct {
	Synth         synth.Synthesizer
	Encoder       encoder.Encoder
	SoundfontPath string

	SampleRate int

	// Volume scales the rendered audio. 1.0 is unity gain.
	Volume float64
}

// NewConverter is the preferred method of initialisation for the Converter
// type.
func NewConverter(sy synth.Synthesizer, enc encoder.Encoder, soundfontPath string) *Converter {
	return &Converter{
		Synth:         sy,
		Encoder:       enc,
		SoundfontPath: soundfontPath,
		SampleRate:    DefaultSampleRate,
		Volume:        1.0,
	}
}

// Convert renders the MIDI file at midiPath and writes the compressed
// result to outputPath. The staged WAV file next to outputPath is deleted
// only when compression succeeds.
//
// Convert never panics. Any panic raised inside the pipeline is caught and
// reported as a failed Result.
func (cv *Converter) Convert(ctx context.Context, midiPath string, outputPath string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logf(logger.Allow, logTag, "%s: conversion panic: %v", midiPath, r)
			res = Result{}
		}
	}()

	timing := smf.ReadFile(midiPath)

	// loop bounds in samples. -1 means no loop internally; the external
	// representation in Result is the (0, 0) pair
	loopStart := -1
	loopEnd := -1
	if timing.HasLoop() {
		loopStart = timing.TickToSample(timing.LoopStartTick, cv.SampleRate)
		loopEnd = timing.TickToSample(timing.LoopEndTick, cv.SampleRate)
	}

	left, right, err := cv.Synth.Render(ctx, midiPath, cv.SoundfontPath, cv.SampleRate)
	if err != nil {
		logger.Logf(logger.Allow, logTag, "%s: %v", midiPath, err)
		return Result{}
	}

	left, right = cv.shape(left, right, loopEnd)

	wavPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".wav"

	aw, err := wavwriter.New(wavPath, cv.SampleRate)
	if err != nil {
		logger.Logf(logger.Allow, logTag, "%s: %v", midiPath, err)
		return Result{}
	}
	if err := aw.SetAudio(left, right); err != nil {
		logger.Logf(logger.Allow, logTag, "%s: %v", midiPath, err)
		return Result{}
	}
	if loopStart >= 0 {
		aw.SetLoop(loopStart, loopEnd)
	}
	if err := aw.EndMixing(); err != nil {
		logger.Logf(logger.Allow, logTag, "%s: %v", midiPath, err)
		return Result{}
	}

	res = Result{
		Success:    true,
		SampleRate: cv.SampleRate,
	}
	if loopStart >= 0 {
		res.LoopStartSamples = loopStart
		res.LoopLengthSamples = loopEnd - loopStart
	}

	// the caller may want the staged WAV itself, in which case there is
	// nothing to compress
	if wavPath == outputPath {
		return res
	}

	loopLength := 0
	if loopStart >= 0 {
		loopLength = loopEnd - loopStart
	}

	if err := cv.Encoder.Encode(ctx, wavPath, outputPath, loopStart, loopLength); err != nil {
		// the staged WAV stands in as the final artifact
		logger.Logf(logger.Allow, logTag, "%s: %v. keeping %s", midiPath, err, wavPath)
		return res
	}

	if err := os.Remove(wavPath); err != nil {
		logger.Logf(logger.Allow, logTag, "%s: %v", midiPath, err)
	}

	return res
}

// shape scales the rendered audio by the converter volume and pads it with
// silence so that the buffer covers the loop region and is never shorter
// than one second.
func (cv *Converter) shape(left []float32, right []float32, loopEnd int) ([]float32, []float32) {
	if cv.Volume != 1.0 {
		vol := float32(cv.Volume)
		for i := range left {
			left[i] *= vol
			right[i] *= vol
		}
	}

	minFrames := cv.SampleRate
	if loopEnd > minFrames {
		minFrames = loopEnd
	}
	for len(left) < minFrames {
		left = append(left, 0)
		right = append(right, 0)
	}

	return left, right
}
