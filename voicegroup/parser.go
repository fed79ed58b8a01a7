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

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hautbois/agbsound/logger"
)

const logTag = "voicegroup"

// the line grammar. each form is an independent pattern and the first match
// wins, so the more specific variants are listed before the ones they would
// otherwise shadow (keysplit_all before keysplit, the directsound variants
// before plain directsound)
var (
	groupStart = regexp.MustCompile(`^(voicegroup\w+)::`)

	directSound = regexp.MustCompile(`^\s*voice_directsound(?:_no_resample|_alt)?\s+(\d+)\s*,\s*(\d+)\s*,\s*(\w+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*$`)
	square1     = regexp.MustCompile(`^\s*voice_square_1(?:_alt)?\s+(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*$`)
	square2     = regexp.MustCompile(`^\s*voice_square_2(?:_alt)?\s+(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*$`)
	progWave    = regexp.MustCompile(`^\s*voice_programmable_wave(?:_alt)?\s+(\d+)\s*,\s*(\d+)\s*,\s*(\w+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*$`)
	noise       = regexp.MustCompile(`^\s*voice_noise(?:_alt)?\s+(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*$`)
	keysplitAll = regexp.MustCompile(`^\s*voice_keysplit_all\s+(\w+)\s*$`)
	keysplit    = regexp.MustCompile(`^\s*voice_keysplit\s+(\w+)\s*,\s*(\w+)\s*$`)

	tableStart = regexp.MustCompile(`^\s*keysplit_table\s+(\w+)\s*,\s*(\d+)\s*$`)
	tableSplit = regexp.MustCompile(`^\s*split\s+(\d+)\s*,\s*(\d+)\s*$`)
)

// ParseAll reads every voicegroup include file under groupDir and the
// keysplit table file at tablePath, populating the DB.
//
// Shared keysplit/drumset include files are parsed before the per-song files
// so that shared voicegroups are in place by the time later keysplit voices
// name them. Note however that name references are only resolved at
// consumption time so the ordering is a courtesy, not a requirement.
func (db *DB) ParseAll(groupDir string, tablePath string) error {
	var shared []string
	var perSong []string

	err := filepath.Walk(groupDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".inc" {
			return nil
		}
		base := strings.ToLower(filepath.Base(path))
		if strings.Contains(base, "keysplit") || strings.Contains(base, "drumset") {
			shared = append(shared, path)
		} else {
			perSong = append(perSong, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Strings(shared)
	sort.Strings(perSong)

	for _, path := range append(shared, perSong...) {
		if err := db.parseGroupFile(path); err != nil {
			return err
		}
	}

	if tablePath != "" {
		if err := db.parseTableFile(tablePath); err != nil {
			return err
		}
	}

	logger.Logf(logger.Allow, logTag, "parsed %d voicegroups and %d keysplit tables", len(db.groups), len(db.tables))

	return nil
}

// parseGroupFile parses a single voicegroup include file. Unrecognised lines
// inside a voicegroup block are skipped without advancing the slot cursor.
func (db *DB) parseGroupFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var vg *Voicegroup
	var slot int

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if m := groupStart.FindStringSubmatch(line); m != nil {
			vg = &Voicegroup{Name: m[1]}
			db.groups[vg.Name] = vg
			slot = 0
			continue
		}

		if vg == nil {
			continue
		}

		voice := parseVoice(line)
		if voice == nil {
			continue
		}

		// no file has more than NumSlots programs
		if slot >= NumSlots {
			continue
		}

		vg.Voices[slot] = voice
		slot++
	}

	return scanner.Err()
}

// parseVoice matches one voice definition line, returning nil if the line
// matches no known form.
func parseVoice(line string) VoiceDefinition {
	if m := directSound.FindStringSubmatch(line); m != nil {
		return DirectSoundVoice{
			VoiceCommon: common(m[1], m[2], m[4], m[5], m[6], m[7]),
			SampleName:  m[3],
		}
	}

	if m := square1.FindStringSubmatch(line); m != nil {
		return Square1Voice{
			VoiceCommon: common(m[1], m[2], m[5], m[6], m[7], m[8]),
			Sweep:       atoi(m[3]),
			DutyCycle:   atoi(m[4]),
		}
	}

	if m := square2.FindStringSubmatch(line); m != nil {
		return Square2Voice{
			VoiceCommon: common(m[1], m[2], m[4], m[5], m[6], m[7]),
			DutyCycle:   atoi(m[3]),
		}
	}

	if m := progWave.FindStringSubmatch(line); m != nil {
		return ProgrammableWaveVoice{
			VoiceCommon: common(m[1], m[2], m[4], m[5], m[6], m[7]),
			WaveName:    m[3],
		}
	}

	if m := noise.FindStringSubmatch(line); m != nil {
		return NoiseVoice{
			VoiceCommon: common(m[1], m[2], m[4], m[5], m[6], m[7]),
			Period:      atoi(m[3]),
		}
	}

	if m := keysplitAll.FindStringSubmatch(line); m != nil {
		return KeysplitAllVoice{
			VoicegroupName: m[1],
		}
	}

	if m := keysplit.FindStringSubmatch(line); m != nil {
		return KeysplitVoice{
			VoicegroupName:    m[1],
			KeysplitTableName: m[2],
		}
	}

	return nil
}

// parseTableFile parses the keysplit table file. A table runs from its start
// marker to the next start marker or EOF.
func (db *DB) parseTableFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var kt *KeysplitTable

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if m := tableStart.FindStringSubmatch(line); m != nil {
			kt = &KeysplitTable{
				Name:     m[1],
				StartKey: atoi(m[2]),
			}
			db.tables[normalise(kt.Name, tablePrefix)] = kt
			continue
		}

		if kt == nil {
			continue
		}

		if m := tableSplit.FindStringSubmatch(line); m != nil {
			kt.Entries = append(kt.Entries, KeysplitEntry{
				VoiceIndex: atoi(m[1]),
				HighKey:    atoi(m[2]),
			})
		}
	}

	return scanner.Err()
}

func common(baseKey, pan, attack, decay, sustain, release string) VoiceCommon {
	return VoiceCommon{
		BaseMidiKey: atoi(baseKey),
		Pan:         atoi(pan),
		Envelope: Envelope{
			Attack:  atoi(attack),
			Decay:   atoi(decay),
			Sustain: atoi(sustain),
			Release: atoi(release),
		},
	}
}

// atoi is only ever called with strings matched by a \d+ pattern.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
