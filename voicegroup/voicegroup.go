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

// Package voicegroup models the sound driver's instrument tables and parses
// them from their line-oriented assembly include format.
//
// A voicegroup is a table of up to 128 voice definitions, one per MIDI
// program number. A keysplit table routes note ranges to the voices of
// another voicegroup. Both are parsed once by ParseAll() and are read-only
// thereafter.
package voicegroup

import (
	"strings"
)

// NumSlots is the number of program slots in a voicegroup.
const NumSlots = 128

// Voicegroup is a named table of up to NumSlots voice definitions, indexed by
// MIDI program number. Unused slots are nil. Never mutated after parsing.
type Voicegroup struct {
	Name   string
	Voices [NumSlots]VoiceDefinition
}

// KeysplitEntry is one note range of a keysplit table. The low key of the
// range is implied: one past the previous entry's HighKey, starting from the
// table's StartKey.
type KeysplitEntry struct {
	VoiceIndex int
	HighKey    int
}

// KeysplitTable routes contiguous ascending note ranges to voice indices.
type KeysplitTable struct {
	Name     string
	StartKey int
	Entries  []KeysplitEntry
}

// VoiceForKey returns the voice index for a MIDI note. Returns false if the
// note falls outside every range in the table.
func (kt *KeysplitTable) VoiceForKey(key int) (int, bool) {
	if key < kt.StartKey {
		return 0, false
	}
	for _, e := range kt.Entries {
		if key <= e.HighKey {
			return e.VoiceIndex, true
		}
	}
	return 0, false
}

// LowKey returns the implied low key of the numbered entry.
func (kt *KeysplitTable) LowKey(entry int) int {
	if entry == 0 {
		return kt.StartKey
	}
	return kt.Entries[entry-1].HighKey + 1
}

// canonical name prefixes. bare names are normalised to these before lookup
const (
	groupPrefix = "voicegroup"
	tablePrefix = "keysplit"
)

// DB is the collection of every parsed voicegroup and keysplit table.
type DB struct {
	groups map[string]*Voicegroup
	tables map[string]*KeysplitTable
}

// NewDB is the preferred method of initialisation for the DB type.
func NewDB() *DB {
	return &DB{
		groups: make(map[string]*Voicegroup),
		tables: make(map[string]*KeysplitTable),
	}
}

// Voicegroup returns the named voicegroup. A bare name is normalised to the
// canonical prefixed form before lookup. A missing voicegroup is not an
// error; callers should treat it as "this voice cannot be resolved" and skip.
func (db *DB) Voicegroup(name string) (*Voicegroup, bool) {
	vg, ok := db.groups[normalise(name, groupPrefix)]
	return vg, ok
}

// KeysplitTable returns the named keysplit table. Lookup normalisation is the
// same as for Voicegroup().
func (db *DB) KeysplitTable(name string) (*KeysplitTable, bool) {
	kt, ok := db.tables[normalise(name, tablePrefix)]
	return kt, ok
}

// Names returns the names of every parsed voicegroup.
func (db *DB) Names() []string {
	n := make([]string, 0, len(db.groups))
	for k := range db.groups {
		n = append(n, k)
	}
	return n
}

func normalise(name string, prefix string) string {
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + "_" + name
}
