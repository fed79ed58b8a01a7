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

// Package sf2 assembles and serializes a SoundFont 2.01 instrument bank.
//
// The Builder accumulates samples, instruments and presets and serializes
// them as the nested RIFF chunk tree required by the SF2 specification
// (RIFF/sfbk containing LIST/INFO, LIST/sdta and LIST/pdta). External
// synthesizers parse the format rigidly so the writer computes every chunk
// size from record counts before any bytes are written.
//
// The builder is a pure structural encoder. It does not validate
// hardware-domain ranges; malformed envelope or sample values are encoded
// as given. The only hard failure mode is I/O.
package sf2

import (
	"github.com/hautbois/agbsound/logger"
	"github.com/hautbois/agbsound/voicegroup"
)

const logTag = "sf2"

// DefaultRootKey is the last-resort root key when neither the zone nor the
// sample specifies one. Middle C.
const DefaultRootKey = 60

// Sample is one stored PCM sample. Data is always 16-bit signed. Loop
// offsets are relative to the start of the sample; -1 means no loop.
type Sample struct {
	Name       string
	Data       []int16
	SampleRate int
	RootKey    int
	LoopStart  int
	LoopEnd    int
}

// looped returns true if the sample carries a loop. Absent loop bounds
// default to "whole sample, no loop" at serialization.
func (s *Sample) looped() bool {
	return s.LoopStart >= 0
}

// Zone maps a key range and velocity range to one sample, with an envelope
// and an optional root key override (-1 for none).
type Zone struct {
	KeyLow          int
	KeyHigh         int
	VelLow          int
	VelHigh         int
	SampleIndex     int
	Envelope        voicegroup.Envelope
	RootKeyOverride int
}

// Instrument is a named ordered list of zones.
type Instrument struct {
	Name  string
	Zones []Zone
}

// Preset binds a (bank, program) MIDI address to one instrument.
type Preset struct {
	Name            string
	Bank            int
	Program         int
	InstrumentIndex int
}

// Builder accumulates the contents of a soundfont. The sample, instrument
// and preset collections are owned by the builder and append-only: indices
// returned from the Add functions are stable for the builder's lifetime and
// are the only handles callers should hold. Callers must add a sample or
// instrument before referencing its index from a zone or preset.
type Builder struct {
	BankName string

	samples     []Sample
	instruments []Instrument
	presets     []Preset
}

// NewBuilder is the preferred method of initialisation for the Builder type.
func NewBuilder(bankName string) *Builder {
	return &Builder{
		BankName: bankName,
	}
}

// AddSample converts 8-bit unsigned PCM to signed 16-bit and stores it,
// returning the sample's index. Loop offsets of -1 mean no loop.
//
// The conversion is centred and scaled by 256, deliberately not filling the
// full 16-bit dynamic range: the square-wave inputs sit asymmetrically
// around the 8-bit midpoint and full-scale expansion would clip.
func (b *Builder) AddSample(name string, data []byte, sampleRate int, rootKey int, loopStart int, loopEnd int) int {
	conv := make([]int16, len(data))
	for i, v := range data {
		conv[i] = int16((int(v) - 128) * 256)
	}
	return b.AddSample16(name, conv, sampleRate, rootKey, loopStart, loopEnd)
}

// AddSample16 stores pre-converted 16-bit PCM, returning the sample's index.
func (b *Builder) AddSample16(name string, data []int16, sampleRate int, rootKey int, loopStart int, loopEnd int) int {
	b.samples = append(b.samples, Sample{
		Name:       name,
		Data:       data,
		SampleRate: sampleRate,
		RootKey:    rootKey,
		LoopStart:  loopStart,
		LoopEnd:    loopEnd,
	})
	return len(b.samples) - 1
}

// AddSimpleInstrument adds an instrument with a single zone spanning the
// full key and velocity range, returning the instrument's index. A
// rootKeyOverride of -1 defers to the sample's stored root key.
func (b *Builder) AddSimpleInstrument(name string, sampleIndex int, env voicegroup.Envelope, rootKeyOverride int) int {
	return b.AddKeysplitInstrument(name, []Zone{{
		KeyLow:          0,
		KeyHigh:         127,
		VelLow:          0,
		VelHigh:         127,
		SampleIndex:     sampleIndex,
		Envelope:        env,
		RootKeyOverride: rootKeyOverride,
	}})
}

// AddKeysplitInstrument adds an instrument with the supplied zone list,
// returning the instrument's index. Zones are serialized in the order given.
func (b *Builder) AddKeysplitInstrument(name string, zones []Zone) int {
	b.instruments = append(b.instruments, Instrument{
		Name:  name,
		Zones: zones,
	})
	return len(b.instruments) - 1
}

// AddPreset binds a (bank, program) address to an instrument.
//
// Duplicate (bank, program) pairs are not deduplicated. The SF2
// specification leaves the handling of duplicate presets undefined and
// downstream synthesizers will tie-break in implementation-defined ways.
func (b *Builder) AddPreset(name string, bank int, program int, instrumentIndex int) {
	b.presets = append(b.presets, Preset{
		Name:            name,
		Bank:            bank,
		Program:         program,
		InstrumentIndex: instrumentIndex,
	})
}

// SampleRootKey returns the stored root key of the indexed sample, -1 if
// the sample has none or the index is out of range.
func (b *Builder) SampleRootKey(idx int) int {
	if idx < 0 || idx >= len(b.samples) {
		return -1
	}
	return b.samples[idx].RootKey
}

// NumSamples returns the number of samples added so far.
func (b *Builder) NumSamples() int {
	return len(b.samples)
}

// NumInstruments returns the number of instruments added so far.
func (b *Builder) NumInstruments() int {
	return len(b.instruments)
}

// NumPresets returns the number of presets added so far.
func (b *Builder) NumPresets() int {
	return len(b.presets)
}

// zoneCount is the aggregate zone count across all instruments.
func (b *Builder) zoneCount() int {
	n := 0
	for i := range b.instruments {
		n += len(b.instruments[i].Zones)
	}
	return n
}

// rootKey resolves a zone's effective root key: the zone's override if set,
// else the referenced sample's stored root key, else middle C.
func (b *Builder) rootKey(z *Zone) int {
	if z.RootKeyOverride >= 0 {
		return z.RootKeyOverride
	}
	if z.SampleIndex >= 0 && z.SampleIndex < len(b.samples) {
		if k := b.samples[z.SampleIndex].RootKey; k >= 0 {
			return k
		}
	}
	return DefaultRootKey
}

func (b *Builder) logContents() {
	logger.Logf(logger.Allow, logTag, "%d samples, %d instruments (%d zones), %d presets",
		len(b.samples), len(b.instruments), b.zoneCount(), len(b.presets))
}
