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

// Package psg synthesizes PCM waveforms for the hardware's programmable
// sound generator channels: the two square wave channels, the 32-sample
// programmable wave channel and the LFSR noise channel.
//
// Waveforms are generated as one second of 8-bit unsigned PCM at a fixed low
// sample rate. The low rate reproduces the aliasing of the hardware's own
// output and is kept when the data is resampled by a downstream synthesizer.
package psg

import (
	"math"
)

// SampleRate is the fixed rate of all generated waveforms. It matches the
// mixing rate of the original hardware sound driver.
const SampleRate = 13379

// output levels of the square and noise channels. high and low sit
// symmetrically around the 8-bit midpoint at roughly quarter full scale,
// approximating the PSG's output level so that mixing against normalised
// PCM samples stays balanced.
const (
	levelHigh = 192
	levelLow  = 64
)

// duty cycle fractions indexed by the voice definition's DutyCycle field.
var dutyCycles = [4]float64{0.125, 0.25, 0.50, 0.75}

// SquareFrequency is the tuning frequency of generated square and wave
// channel samples: A above middle C.
const SquareFrequency = 440.0

// RootKey is the MIDI key at which generated square and wave channel samples
// play back untransposed. A4, matching SquareFrequency.
const RootKey = 69

// GenerateSquare returns one second of square wave at the given duty cycle
// (0 to 3) and SquareFrequency.
func GenerateSquare(dutyCycle int) []byte {
	if dutyCycle < 0 || dutyCycle > 3 {
		dutyCycle = 2
	}
	duty := dutyCycles[dutyCycle]

	data := make([]byte, SampleRate)
	samplesPerCycle := float64(SampleRate) / SquareFrequency

	for i := range data {
		phase := math.Mod(float64(i), samplesPerCycle) / samplesPerCycle
		if phase < duty {
			data[i] = levelHigh
		} else {
			data[i] = levelLow
		}
	}

	return data
}

// GenerateWave returns one second of the 32-sample programmable waveform at
// the given frequency. Each 4-bit sample (0 to 15) is expanded to 8 bits,
// centred on its quantisation step.
func GenerateWave(wave [32]byte, frequency float64) []byte {
	data := make([]byte, SampleRate)
	samplesPerCycle := float64(SampleRate) / frequency

	for i := range data {
		phase := math.Mod(float64(i), samplesPerCycle) / samplesPerCycle
		idx := int(phase*32) % 32
		data[i] = wave[idx]*16 + 8
	}

	return data
}

// noise LFSR register widths. the short register is 7 bits wide and sounds
// metallic; the long register is 15 bits wide and is close to white noise.
const (
	shortTopBit = 6
	shortMask   = 0x7f
	longTopBit  = 14
	longMask    = 0x7fff

	lfsrSeed = 0x7fff
)

// GenerateNoise returns one second of LFSR noise. A period of 1 selects the
// short register, any other value the long register.
func GenerateNoise(period int) []byte {
	topBit := longTopBit
	mask := longMask
	step := 4
	if period == 1 {
		topBit = shortTopBit
		mask = shortMask
		step = 2
	}

	data := make([]byte, SampleRate)
	reg := lfsrSeed & mask

	for i := range data {
		if i%step == 0 {
			feedback := (reg ^ (reg >> 1)) & 1
			reg = ((reg >> 1) | (feedback << topBit)) & mask

			// an all-zero register would lock into silence forever
			if reg == 0 {
				reg = mask
			}
		}

		if reg&1 == 1 {
			data[i] = levelHigh
		} else {
			data[i] = levelLow
		}
	}

	return data
}

// ParseProgrammableWaveData unpacks the on-disk form of a programmable
// waveform: 16 bytes holding two 4-bit samples each, high nibble first.
func ParseProgrammableWaveData(raw []byte) [32]byte {
	var wave [32]byte
	for i := 0; i < 16 && i < len(raw); i++ {
		wave[i*2] = raw[i] >> 4
		wave[i*2+1] = raw[i] & 0x0f
	}
	return wave
}
