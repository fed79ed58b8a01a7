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

// Package synth renders MIDI songs to PCM through an external synthesizer.
//
// Synthesis itself is deliberately out of this project's hands. The
// Synthesizer interface is the narrow boundary the conversion pipeline
// depends on: a MIDI file and a soundfont in, stereo float PCM out. The
// production implementation drives a fluidsynth subprocess; tests substitute
// their own implementations.
package synth

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/go-audio/wav"
	"github.com/hautbois/agbsound/curated"
	"github.com/hautbois/agbsound/logger"
)

const logTag = "synth"

// sentinel errors for the synth package
const (
	RenderError = "synth: %s: %v"
)

// Synthesizer renders the MIDI file at midiPath through the soundfont at
// soundfontPath, returning stereo float PCM at the requested sample rate.
// The two channels are always the same length.
type Synthesizer interface {
	Render(ctx context.Context, midiPath string, soundfontPath string, sampleRate int) (left []float32, right []float32, err error)
}

// FluidSynth renders songs by running the fluidsynth program.
type FluidSynth struct {
	// Executable is the program to run. Defaults to "fluidsynth" found on
	// the search path.
	Executable string

	// Gain passed to the synthesizer. fluidsynth's default of 0.2 is very
	// quiet for single-song renders.
	Gain float64
}

// NewFluidSynth is the preferred method of initialisation for the FluidSynth
// type.
func NewFluidSynth() *FluidSynth {
	return &FluidSynth{
		Executable: "fluidsynth",
		Gain:       1.0,
	}
}

// Render implements the Synthesizer interface.
func (fs *FluidSynth) Render(ctx context.Context, midiPath string, soundfontPath string, sampleRate int) ([]float32, []float32, error) {
	stage, err := os.MkdirTemp("", "agbsound-synth")
	if err != nil {
		return nil, nil, curated.Errorf(RenderError, midiPath, err)
	}
	defer os.RemoveAll(stage)

	rendered := filepath.Join(stage, "render.wav")

	cmd := exec.CommandContext(ctx, fs.Executable,
		"-ni",
		"-g", strconv.FormatFloat(fs.Gain, 'f', -1, 64),
		"-r", strconv.Itoa(sampleRate),
		"-F", rendered,
		soundfontPath, midiPath)

	logger.Logf(logger.Allow, logTag, "rendering %s", midiPath)

	if output, err := cmd.CombinedOutput(); err != nil {
		logger.Logf(logger.Allow, logTag, "%s", output)
		return nil, nil, curated.Errorf(RenderError, midiPath, err)
	}

	return loadStereo(rendered)
}

// loadStereo reads the synthesizer's staged WAV output as two float
// channels. Mono output is duplicated to both channels.
func loadStereo(path string) ([]float32, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, curated.Errorf(RenderError, path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, curated.Errorf(RenderError, path, "synthesizer produced an invalid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, curated.Errorf(RenderError, path, err)
	}
	floatBuf := buf.AsFloat32Buffer()

	numChans := int(dec.NumChans)
	if numChans < 1 {
		numChans = 1
	}

	numFrames := len(floatBuf.Data) / numChans
	left := make([]float32, numFrames)
	right := make([]float32, numFrames)

	scale := float32(1.0)
	if dec.BitDepth > 0 {
		scale = 1.0 / float32(int(1)<<(dec.BitDepth-1))
	}

	for i := 0; i < numFrames; i++ {
		left[i] = floatBuf.Data[i*numChans] * scale
		if numChans > 1 {
			right[i] = floatBuf.Data[i*numChans+1] * scale
		} else {
			right[i] = left[i]
		}
	}

	return left, right, nil
}
