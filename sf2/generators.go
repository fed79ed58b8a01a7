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

package sf2

// SF2 generator opcodes used by this writer. Numbering per section 8.1.2 of
// the SoundFont 2.01 specification.
const (
	genAttackVolEnv      = 34
	genDecayVolEnv       = 36
	genSustainVolEnv     = 37
	genReleaseVolEnv     = 38
	genInstrument        = 41
	genKeyRange          = 43
	genVelRange          = 44
	genSampleID          = 53
	genSampleModes       = 54
	genOverridingRootKey = 58
)

// generatorsPerZone is the fixed number of generators written for every
// instrument zone, in the order of writeZoneGenerators().
const generatorsPerZone = 9

// Envelope approximation constants, in timecents and centibels.
//
// The hardware's 0-255 envelope integers have no meaningful linear mapping
// onto SF2's logarithmic units, so the writer uses fixed constants instead
// of a formula: a fast attack, an instant decay, full sustain and a short
// release of roughly 0.15 seconds. Notes begin immediately, hold at full
// volume while keys are down and fade naturally on release. The parsed
// hardware envelope values are carried through the zone records but are not
// consulted here.
const (
	envAttackTimecents  = -12000 // about 1ms
	envDecayTimecents   = -12000
	envSustainCentibels = 0 // no attenuation
	envReleaseTimecents = -3284 // about 0.15s
)
