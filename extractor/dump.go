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

package extractor

import (
	"io"

	"github.com/bradleyjkemp/memviz"
	"github.com/davecgh/go-spew/spew"
)

// Dump writes a readable dump of every parsed voicegroup and song
// configuration. Intended for checking what the parsers actually saw when a
// conversion sounds wrong.
func (ex *Extractor) Dump(output io.Writer) {
	spew.Fdump(output, ex.voicegroups)
	spew.Fdump(output, ex.songs)
}

// DumpGraph writes the parsed voicegroup topology as a dot graph, showing
// keysplit references between groups.
func (ex *Extractor) DumpGraph(output io.Writer) {
	memviz.Map(output, ex.voicegroups)
}
