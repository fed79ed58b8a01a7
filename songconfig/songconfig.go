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

// Package songconfig maps songs to voicegroups and per-song mix parameters.
//
// Song configuration is assembled from up to three sources, in order: the
// song-list config file, a scan of the songs directory for songs with no
// explicit entry, and an optional mix-parameter file. Later sources overwrite
// fields of existing entries by song name; they never create duplicates.
package songconfig

import (
	"strings"
)

// DefaultVoicegroup is assigned to any song found by directory scan that has
// no entry in the song-list config.
const DefaultVoicegroup = "voicegroup000"

// DefaultVolume is the mix volume given to a song with no explicit -V flag.
const DefaultVolume = 100

// SongConfig is the accumulated configuration for one song.
type SongConfig struct {
	Name           string
	VoicegroupName string
	AssemblyPath   string
	Interpolation  string
	ModType        string
	Reverb         int
	Volume         int // 0 to 127
	Priority       int
}

// NormalizedVolume returns the mix volume in the range 0.0 to 1.0.
func (sc *SongConfig) NormalizedVolume() float64 {
	return float64(sc.Volume) / 127.0
}

// DB is the collection of every song's configuration.
type DB struct {
	songs map[string]*SongConfig

	// parse order, so that iteration over the batch is deterministic
	order []string
}

// NewDB is the preferred method of initialisation for the DB type.
func NewDB() *DB {
	return &DB{
		songs: make(map[string]*SongConfig),
	}
}

// SongConfig returns the configuration for the exactly named song. No name
// normalisation takes place.
func (db *DB) SongConfig(name string) (*SongConfig, bool) {
	sc, ok := db.songs[name]
	return sc, ok
}

// Songs returns every song configuration in parse order.
func (db *DB) Songs() []*SongConfig {
	s := make([]*SongConfig, 0, len(db.order))
	for _, name := range db.order {
		s = append(s, db.songs[name])
	}
	return s
}

// UsedVoicegroups returns the distinct set of voicegroup names across all
// songs, in first-use order.
func (db *DB) UsedVoicegroups() []string {
	seen := make(map[string]bool)
	used := make([]string, 0)
	for _, name := range db.order {
		vg := db.songs[name].VoicegroupName
		if vg != "" && !seen[vg] {
			seen[vg] = true
			used = append(used, vg)
		}
	}
	return used
}

// SongsByVoicegroup returns every song using the named voicegroup. The name
// comparison is case insensitive.
func (db *DB) SongsByVoicegroup(name string) []*SongConfig {
	s := make([]*SongConfig, 0)
	for _, n := range db.order {
		if strings.EqualFold(db.songs[n].VoicegroupName, name) {
			s = append(s, db.songs[n])
		}
	}
	return s
}

// entry returns the configuration for a song, creating a default entry if the
// song has not been seen before.
func (db *DB) entry(name string) *SongConfig {
	if sc, ok := db.songs[name]; ok {
		return sc
	}
	sc := &SongConfig{
		Name:           name,
		VoicegroupName: DefaultVoicegroup,
		Volume:         DefaultVolume,
	}
	db.songs[name] = sc
	db.order = append(db.order, name)
	return sc
}
