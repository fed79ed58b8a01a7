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

package psg

import (
	"os"

	"github.com/hautbois/agbsound/logger"
	"github.com/youpy/go-wav"
)

// ExportWAV writes a generated waveform to disk as an 8-bit mono WAV file.
// Intended for auditioning the PSG output during development and debugging.
func ExportWAV(filename string, data []byte) (rerr error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		err := f.Close()
		if err != nil && rerr == nil {
			rerr = err
		}
	}()

	buffer := make([]wav.Sample, len(data))
	for i, v := range data {
		buffer[i].Values[0] = int(v)
	}

	enc := wav.NewWriter(f, uint32(len(buffer)), 1, SampleRate, 8)
	if err := enc.WriteSamples(buffer); err != nil {
		return err
	}

	logger.Logf(logger.Allow, "psg", "exported waveform to %s", filename)

	return nil
}
