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

package songconfig

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hautbois/agbsound/logger"
)

const logTag = "songconfig"

var (
	// makefile-like song target followed by key=value parameter lines
	songTarget = regexp.MustCompile(`^(\S+\.mid)\s*:`)
	paramLine  = regexp.MustCompile(`^\s+(\w+)\s*=\s*(\S+)\s*$`)

	// mix-parameter file. one song per line: a MIDI basename, a colon, then
	// a list of flags
	mixLine = regexp.MustCompile(`^(\w+)\s*:\s*(.*)$`)
	mixFlag = regexp.MustCompile(`^-([VRPG])(\S*)$`)
)

// ParseAll combines the song-list config at listPath with a directory scan of
// songDir and, last of all, the optional mix-parameter file at mixPath.
// Last-writer-wins: the mix-parameter file may overwrite fields of existing
// entries and may create new entries for songs not previously seen.
//
// Either file path may be empty, in which case that pass is skipped.
func (db *DB) ParseAll(songDir string, listPath string, mixPath string) error {
	if listPath != "" {
		if err := db.parseSongList(listPath); err != nil {
			return err
		}
	}

	if songDir != "" {
		if err := db.scanSongDir(songDir); err != nil {
			return err
		}
	}

	if mixPath != "" {
		if err := db.parseMixFile(mixPath); err != nil {
			return err
		}
	}

	logger.Logf(logger.Allow, logTag, "%d songs configured", len(db.songs))

	return nil
}

// parseSongList reads the makefile-like song-list config. The file is
// authoritative for which songs exist and their primary voicegroup,
// interpolation, mod-type and reverb.
func (db *DB) parseSongList(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var sc *SongConfig

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if m := songTarget.FindStringSubmatch(line); m != nil {
			name := strings.TrimSuffix(filepath.Base(m[1]), ".mid")
			sc = db.entry(name)
			sc.AssemblyPath = m[1]
			continue
		}

		if sc == nil {
			continue
		}

		m := paramLine.FindStringSubmatch(line)
		if m == nil {
			// a non-parameter line ends the current target
			sc = nil
			continue
		}

		switch strings.ToLower(m[1]) {
		case "voicegroup":
			sc.VoicegroupName = m[2]
		case "interpolation":
			sc.Interpolation = m[2]
		case "modtype":
			sc.ModType = m[2]
		case "reverb":
			sc.Reverb = atoiOr(m[2], sc.Reverb)
		}
	}

	return scanner.Err()
}

// scanSongDir creates a default entry for any song in the directory that has
// no entry from the song-list config.
func (db *DB) scanSongDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".mid" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".mid")
		if _, ok := db.songs[name]; !ok {
			logger.Logf(logger.Allow, logTag, "%s: no config entry, using %s", name, DefaultVoicegroup)
		}
		db.entry(name)
	}

	return nil
}

// parseMixFile reads the per-song mix-parameter file. Flags: -V volume,
// -R reverb, -P priority, -G voicegroup. A malformed numeric flag leaves the
// field at its previous value; this file degrades to defaults, it never halts
// the pipeline.
func (db *DB) parseMixFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := mixLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		sc := db.entry(m[1])

		for _, field := range strings.Fields(m[2]) {
			fm := mixFlag.FindStringSubmatch(field)
			if fm == nil {
				continue
			}
			switch fm[1] {
			case "V":
				sc.Volume = clampVolume(atoiOr(fm[2], sc.Volume))
			case "R":
				sc.Reverb = atoiOr(fm[2], sc.Reverb)
			case "P":
				sc.Priority = atoiOr(fm[2], sc.Priority)
			case "G":
				if fm[2] != "" {
					sc.VoicegroupName = fm[2]
				}
			}
		}
	}

	return scanner.Err()
}

// atoiOr returns the integer value of s, or the previous value if s is
// malformed.
func atoiOr(s string, prev int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return prev
	}
	return n
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}
