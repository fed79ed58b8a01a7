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

// Package soundbank assembles parsed voicegroups into a soundfont.
//
// Each voicegroup added to the Assembler becomes one soundfont bank with
// one preset per occupied voice slot, addressed by (bank, program) from the
// rendered MIDI streams. Recorded samples are loaded from disk while the
// synthesized channel voices are generated on first use and shared between
// every voice with the same parameters.
//
// Resolution failures are never fatal here. A voice referencing a missing
// sample or voicegroup degrades to silence or is skipped, with the problem
// logged, so one bad table entry cannot sink the whole asset build.
package soundbank

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hautbois/agbsound/curated"
	"github.com/hautbois/agbsound/logger"
	"github.com/hautbois/agbsound/pcm"
	"github.com/hautbois/agbsound/psg"
	"github.com/hautbois/agbsound/sf2"
	"github.com/hautbois/agbsound/voicegroup"
)

const logTag = "soundbank"

// sentinel errors for the soundbank package
const (
	NoSuchVoicegroup = "soundbank: no such voicegroup: %s"
)

// silenceFrames is the length of the placeholder sample substituted for a
// missing recording. A tenth of a second.
const silenceFrames = 2205

// silenceRate is the sample rate of the placeholder sample.
const silenceRate = 22050

// Options locates the resources referenced by voice definitions.
type Options struct {
	// SampleDir holds the DirectSound recordings, one file per sample name
	// with a .wav or .mp3 extension.
	SampleDir string

	// WaveDir holds the packed programmable waveform data, one 16 byte file
	// per wave name.
	WaveDir string
}

// Assembler builds one soundfont from many voicegroups.
type Assembler struct {
	db   *voicegroup.DB
	opts Options
	bank *sf2.Builder

	// sample indices by resource identity
	pcmSamples map[string]int
	psgSamples map[string]int

	// bank numbers by voicegroup name
	bankNumbers map[string]int
	nextBank    int
}

// NewAssembler is the preferred method of initialisation for the Assembler
// type.
func NewAssembler(bankName string, db *voicegroup.DB, opts Options) *Assembler {
	return &Assembler{
		db:          db,
		opts:        opts,
		bank:        sf2.NewBuilder(bankName),
		pcmSamples:  make(map[string]int),
		psgSamples:  make(map[string]int),
		bankNumbers: make(map[string]int),
	}
}

// AddVoicegroup builds a preset for every occupied slot of the named
// voicegroup, assigning the group the next free bank number. Adding the
// same voicegroup twice is a no-op.
func (as *Assembler) AddVoicegroup(name string) error {
	vg, ok := as.db.Voicegroup(name)
	if !ok {
		return curated.Errorf(NoSuchVoicegroup, name)
	}

	if _, ok := as.bankNumbers[vg.Name]; ok {
		return nil
	}

	bankNum := as.nextBank
	as.nextBank++
	as.bankNumbers[vg.Name] = bankNum

	built := 0
	for slot, v := range vg.Voices {
		if v == nil {
			continue
		}

		inst, ok := as.instrument(fmt.Sprintf("%s_%03d", vg.Name, slot), v)
		if !ok {
			continue
		}

		as.bank.AddPreset(fmt.Sprintf("%s_%03d", vg.Name, slot), bankNum, slot, inst)
		built++
	}

	logger.Logf(logger.Allow, logTag, "%s: bank %d, %d presets", vg.Name, bankNum, built)

	return nil
}

// Soundfont returns the assembled builder, ready for serialization.
func (as *Assembler) Soundfont() *sf2.Builder {
	return as.bank
}

// BankNumber returns the soundfont bank assigned to the named voicegroup.
func (as *Assembler) BankNumber(name string) (int, bool) {
	vg, ok := as.db.Voicegroup(name)
	if !ok {
		return 0, false
	}
	n, ok := as.bankNumbers[vg.Name]
	return n, ok
}

// instrument builds the soundfont instrument for one voice definition.
// Returns false if the voice cannot be resolved at all.
func (as *Assembler) instrument(name string, v voicegroup.VoiceDefinition) (int, bool) {
	switch v := v.(type) {
	case voicegroup.DirectSoundVoice:
		smp, rootKey := as.directSample(v)
		return as.bank.AddSimpleInstrument(name, smp, v.Envelope, rootKey), true

	case voicegroup.Square1Voice:
		return as.bank.AddSimpleInstrument(name, as.squareSample(v.DutyCycle), v.Envelope, -1), true

	case voicegroup.Square2Voice:
		return as.bank.AddSimpleInstrument(name, as.squareSample(v.DutyCycle), v.Envelope, -1), true

	case voicegroup.ProgrammableWaveVoice:
		return as.bank.AddSimpleInstrument(name, as.waveSample(v.WaveName), v.Envelope, -1), true

	case voicegroup.NoiseVoice:
		return as.bank.AddSimpleInstrument(name, as.noiseSample(v.Period), v.Envelope, v.BaseMidiKey), true

	case voicegroup.KeysplitVoice:
		return as.keysplitInstrument(name, v)

	case voicegroup.KeysplitAllVoice:
		return as.drumkitInstrument(name, v)
	}

	return 0, false
}

// keysplitInstrument builds one zone per note range of the keysplit table,
// each zone referencing a voice of the target voicegroup.
func (as *Assembler) keysplitInstrument(name string, v voicegroup.KeysplitVoice) (int, bool) {
	vg, ok := as.db.Voicegroup(v.VoicegroupName)
	if !ok {
		logger.Logf(logger.Allow, logTag, "%s: no such voicegroup: %s", name, v.VoicegroupName)
		return 0, false
	}
	kt, ok := as.db.KeysplitTable(v.KeysplitTableName)
	if !ok {
		logger.Logf(logger.Allow, logTag, "%s: no such keysplit table: %s", name, v.KeysplitTableName)
		return 0, false
	}

	zones := make([]sf2.Zone, 0, len(kt.Entries))
	for i, e := range kt.Entries {
		if e.VoiceIndex < 0 || e.VoiceIndex >= voicegroup.NumSlots {
			continue
		}
		target := vg.Voices[e.VoiceIndex]
		if target == nil {
			logger.Logf(logger.Allow, logTag, "%s: empty voice %d in %s", name, e.VoiceIndex, vg.Name)
			continue
		}

		smp, rootKey, ok := as.voiceSample(target)
		if !ok {
			continue
		}

		zones = append(zones, sf2.Zone{
			KeyLow:          kt.LowKey(i),
			KeyHigh:         e.HighKey,
			VelLow:          0,
			VelHigh:         127,
			SampleIndex:     smp,
			Envelope:        target.Common().Envelope,
			RootKeyOverride: rootKey,
		})
	}

	if len(zones) == 0 {
		logger.Logf(logger.Allow, logTag, "%s: keysplit resolved no zones", name)
		return 0, false
	}

	return as.bank.AddKeysplitInstrument(name, zones), true
}

// drumkitInstrument maps every note to the same-numbered voice of the
// target voicegroup. Each zone is pinned to a single key with the root key
// overridden to that key, so the sample plays at its recorded pitch
// whatever slot it occupies.
func (as *Assembler) drumkitInstrument(name string, v voicegroup.KeysplitAllVoice) (int, bool) {
	vg, ok := as.db.Voicegroup(v.VoicegroupName)
	if !ok {
		logger.Logf(logger.Allow, logTag, "%s: no such voicegroup: %s", name, v.VoicegroupName)
		return 0, false
	}

	zones := make([]sf2.Zone, 0, voicegroup.NumSlots)
	for key, target := range vg.Voices {
		if target == nil {
			continue
		}

		smp, _, ok := as.voiceSample(target)
		if !ok {
			continue
		}

		zones = append(zones, sf2.Zone{
			KeyLow:          key,
			KeyHigh:         key,
			VelLow:          0,
			VelHigh:         127,
			SampleIndex:     smp,
			Envelope:        target.Common().Envelope,
			RootKeyOverride: key,
		})
	}

	if len(zones) == 0 {
		logger.Logf(logger.Allow, logTag, "%s: drumkit resolved no zones", name)
		return 0, false
	}

	return as.bank.AddKeysplitInstrument(name, zones), true
}

// voiceSample resolves the sample behind any non-keysplit voice type.
// Nested keysplits are not resolvable. The returned root key is an override
// for the zone, -1 to defer to the sample.
func (as *Assembler) voiceSample(v voicegroup.VoiceDefinition) (int, int, bool) {
	switch v := v.(type) {
	case voicegroup.DirectSoundVoice:
		smp, rootKey := as.directSample(v)
		return smp, rootKey, true
	case voicegroup.Square1Voice:
		return as.squareSample(v.DutyCycle), -1, true
	case voicegroup.Square2Voice:
		return as.squareSample(v.DutyCycle), -1, true
	case voicegroup.ProgrammableWaveVoice:
		return as.waveSample(v.WaveName), -1, true
	case voicegroup.NoiseVoice:
		return as.noiseSample(v.Period), v.BaseMidiKey, true
	}

	logger.Logf(logger.Allow, logTag, "nested keysplit voice skipped")
	return 0, 0, false
}

// directSample loads a recorded sample, substituting silence when the
// recording is missing or unreadable. The returned root key override is the
// voice's base key unless the recording carries its own unity note.
func (as *Assembler) directSample(v voicegroup.DirectSoundVoice) (int, int) {
	if idx, ok := as.pcmSamples[v.SampleName]; ok {
		return idx, as.directRootKey(v, idx)
	}

	s, err := as.loadRecording(v.SampleName)
	if err != nil {
		logger.Logf(logger.Allow, logTag, "%v. substituting silence", err)
		s = pcm.Silence(silenceFrames, silenceRate)
	}

	idx := as.bank.AddSample16(v.SampleName, s.Data, s.SampleRate, s.RootKey, s.LoopStart, s.LoopEnd)
	as.pcmSamples[v.SampleName] = idx
	return idx, as.directRootKey(v, idx)
}

// directRootKey prefers the recording's own unity note over the voice's
// base key. A zone override of -1 defers to the sample's stored root key.
func (as *Assembler) directRootKey(v voicegroup.DirectSoundVoice, idx int) int {
	if as.bank.SampleRootKey(idx) >= 0 {
		return -1
	}
	return v.BaseMidiKey
}

func (as *Assembler) loadRecording(name string) (*pcm.Sample, error) {
	var err error
	for _, ext := range []string{".wav", ".mp3"} {
		path := filepath.Join(as.opts.SampleDir, name+ext)
		if _, serr := os.Stat(path); serr != nil {
			err = serr
			continue
		}
		return pcm.Load(path)
	}
	return nil, err
}

// squareSample generates the looped square wave for a duty cycle, shared
// between every square voice with the same duty cycle.
func (as *Assembler) squareSample(dutyCycle int) int {
	key := fmt.Sprintf("square:%d", dutyCycle)
	if idx, ok := as.psgSamples[key]; ok {
		return idx
	}

	data := psg.GenerateSquare(dutyCycle)
	idx := as.bank.AddSample(key, data, psg.SampleRate, psg.RootKey, 0, len(data))
	as.psgSamples[key] = idx
	return idx
}

// waveSample generates the looped waveform of a named programmable wave. A
// missing or short wave file degrades to a silent wave.
func (as *Assembler) waveSample(waveName string) int {
	key := "wave:" + waveName
	if idx, ok := as.psgSamples[key]; ok {
		return idx
	}

	var wave [32]byte
	raw, err := os.ReadFile(filepath.Join(as.opts.WaveDir, waveName))
	if err != nil || len(raw) < 16 {
		logger.Logf(logger.Allow, logTag, "wave %s unreadable. substituting silence", waveName)
	} else {
		wave = psg.ParseProgrammableWaveData(raw)
	}

	data := psg.GenerateWave(wave, psg.SquareFrequency)
	idx := as.bank.AddSample(key, data, psg.SampleRate, psg.RootKey, 0, len(data))
	as.psgSamples[key] = idx
	return idx
}

// noiseSample generates the looped noise channel output for an LFSR period.
func (as *Assembler) noiseSample(period int) int {
	key := fmt.Sprintf("noise:%d", period)
	if idx, ok := as.psgSamples[key]; ok {
		return idx
	}

	data := psg.GenerateNoise(period)
	idx := as.bank.AddSample(key, data, psg.SampleRate, psg.RootKey, 0, len(data))
	as.psgSamples[key] = idx
	return idx
}
