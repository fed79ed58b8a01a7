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

package voicegroup

// Envelope is the hardware ADSR envelope attached to every voice. Each field
// is on the sound driver's own 0-255 scale, not any MIDI or SF2 scale.
type Envelope struct {
	Attack  int
	Decay   int
	Sustain int
	Release int
}

// VoiceCommon gathers the fields shared by every voice definition. The
// envelope is always present even for voice types that make no meaningful
// use of it.
type VoiceCommon struct {
	// root pitch of the voice. semitone in the range 0 to 127
	BaseMidiKey int

	// 0 to 127 with 64 indicating the centre position
	Pan int

	Envelope Envelope
}

// VoiceDefinition is the sealed set of hardware voice types. Instrument
// building logic should dispatch on the concrete type with a type switch,
// listing every variant.
type VoiceDefinition interface {
	Common() VoiceCommon

	// restricts implementations to this package
	sealed()
}

// DirectSoundVoice plays a named PCM sample.
type DirectSoundVoice struct {
	VoiceCommon
	SampleName string
}

// Square1Voice is the first square wave channel. It is the only channel with
// a frequency sweep unit.
type Square1Voice struct {
	VoiceCommon
	Sweep     int
	DutyCycle int // 0 to 3: 12.5%, 25%, 50%, 75%
}

// Square2Voice is the second square wave channel.
type Square2Voice struct {
	VoiceCommon
	DutyCycle int // 0 to 3: 12.5%, 25%, 50%, 75%
}

// ProgrammableWaveVoice plays a named 32 sample, 4-bit waveform.
type ProgrammableWaveVoice struct {
	VoiceCommon
	WaveName string
}

// NoiseVoice is the LFSR noise channel.
type NoiseVoice struct {
	VoiceCommon
	Period int // 0 = long/white, 1 = short/tonal
}

// KeysplitVoice routes by note range to voices in another voicegroup.
type KeysplitVoice struct {
	VoiceCommon
	VoicegroupName    string
	KeysplitTableName string
}

// KeysplitAllVoice maps every note to the same-numbered voice of another
// voicegroup. This is the drumkit pattern.
type KeysplitAllVoice struct {
	VoiceCommon
	VoicegroupName string
}

// Common implements the VoiceDefinition interface.
func (v DirectSoundVoice) Common() VoiceCommon { return v.VoiceCommon }

// Common implements the VoiceDefinition interface.
func (v Square1Voice) Common() VoiceCommon { return v.VoiceCommon }

// Common implements the VoiceDefinition interface.
func (v Square2Voice) Common() VoiceCommon { return v.VoiceCommon }

// Common implements the VoiceDefinition interface.
func (v ProgrammableWaveVoice) Common() VoiceCommon { return v.VoiceCommon }

// Common implements the VoiceDefinition interface.
func (v NoiseVoice) Common() VoiceCommon { return v.VoiceCommon }

// Common implements the VoiceDefinition interface.
func (v KeysplitVoice) Common() VoiceCommon { return v.VoiceCommon }

// Common implements the VoiceDefinition interface.
func (v KeysplitAllVoice) Common() VoiceCommon { return v.VoiceCommon }

func (v DirectSoundVoice) sealed()      {}
func (v Square1Voice) sealed()          {}
func (v Square2Voice) sealed()          {}
func (v ProgrammableWaveVoice) sealed() {}
func (v NoiseVoice) sealed()            {}
func (v KeysplitVoice) sealed()         {}
func (v KeysplitAllVoice) sealed()      {}
