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

package sf2_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/go-audio/riff"
	"github.com/hautbois/agbsound/sf2"
	"github.com/hautbois/agbsound/test"
	"github.com/hautbois/agbsound/voicegroup"
)

// buildFixture builds a bank with 2 samples, 2 instruments (4 zones
// aggregate) and 2 presets.
func buildFixture(t *testing.T) *sf2.Builder {
	t.Helper()

	b := sf2.NewBuilder("test bank")

	pcm := make([]byte, 100)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	s0 := b.AddSample("wave", pcm, 13379, 69, 0, 100)
	test.DemandEquality(t, s0, 0)

	s1 := b.AddSample("oneshot", pcm, 22050, 60, -1, -1)
	test.DemandEquality(t, s1, 1)

	env := voicegroup.Envelope{Attack: 255, Decay: 0, Sustain: 255, Release: 165}

	i0 := b.AddSimpleInstrument("simple", s0, env, -1)
	test.DemandEquality(t, i0, 0)

	i1 := b.AddKeysplitInstrument("split", []sf2.Zone{
		{KeyLow: 0, KeyHigh: 39, VelLow: 0, VelHigh: 127, SampleIndex: s0, Envelope: env, RootKeyOverride: -1},
		{KeyLow: 40, KeyHigh: 79, VelLow: 0, VelHigh: 127, SampleIndex: s1, Envelope: env, RootKeyOverride: 50},
		{KeyLow: 80, KeyHigh: 127, VelLow: 0, VelHigh: 127, SampleIndex: s1, Envelope: env, RootKeyOverride: -1},
	})
	test.DemandEquality(t, i1, 1)

	b.AddPreset("simple", 0, 0, i0)
	b.AddPreset("split", 0, 1, i1)

	return b
}

// serialize the fixture and parse it back with an independent RIFF reader,
// returning the pdta subchunks by name.
func parseBack(t *testing.T, b *sf2.Builder) map[string][]byte {
	t.Helper()

	buf := &bytes.Buffer{}
	test.DemandEquality(t, b.WriteTo(buf), nil)

	p := riff.New(bytes.NewReader(buf.Bytes()))
	test.DemandEquality(t, p.ParseHeaders(), nil)
	test.ExpectEquality(t, string(p.ID[:]), "RIFF")
	test.ExpectEquality(t, string(p.Format[:]), "sfbk")

	chunks := make(map[string][]byte)

	for {
		c, err := p.NextChunk()
		if err == io.EOF {
			break
		}
		test.DemandEquality(t, err, nil)

		if string(c.ID[:]) != "LIST" {
			c.Done()
			continue
		}

		data := make([]byte, c.Size)
		_, err = io.ReadFull(c, data)
		test.DemandEquality(t, err, nil)

		listType := string(data[:4])
		if listType != "pdta" {
			continue
		}

		// walk the subchunks of the pdta list, checking that every declared
		// size matches the actual byte span
		rest := data[4:]
		for len(rest) >= 8 {
			id := string(rest[:4])
			size := int(binary.LittleEndian.Uint32(rest[4:8]))
			test.DemandEquality(t, size <= len(rest)-8, true)
			chunks[id] = rest[8 : 8+size]
			rest = rest[8+size:]
		}
		test.ExpectEquality(t, len(rest), 0)
	}

	return chunks
}

func TestChunkSizes(t *testing.T) {
	b := buildFixture(t)
	chunks := parseBack(t, b)

	// declared sizes must equal (count+1)*recordSize for each hydra table
	test.ExpectEquality(t, len(chunks["phdr"]), (2+1)*38)
	test.ExpectEquality(t, len(chunks["pbag"]), (2+1)*4)
	test.ExpectEquality(t, len(chunks["pmod"]), 10)
	test.ExpectEquality(t, len(chunks["pgen"]), (2+1)*4)
	test.ExpectEquality(t, len(chunks["inst"]), (2+1)*22)
	test.ExpectEquality(t, len(chunks["ibag"]), (4+1)*4)
	test.ExpectEquality(t, len(chunks["imod"]), 10)
	test.ExpectEquality(t, len(chunks["igen"]), (4*9+1)*4)
	test.ExpectEquality(t, len(chunks["shdr"]), (2+1)*46)
}

func TestLoopPointOrdering(t *testing.T) {
	b := buildFixture(t)
	chunks := parseBack(t, b)

	shdr := chunks["shdr"]

	// sample 0: looped over its whole length
	start := binary.LittleEndian.Uint32(shdr[20:24])
	end := binary.LittleEndian.Uint32(shdr[24:28])
	loopStart := binary.LittleEndian.Uint32(shdr[28:32])
	loopEnd := binary.LittleEndian.Uint32(shdr[32:36])

	test.ExpectEquality(t, start, uint32(0))
	test.ExpectEquality(t, end, uint32(100))
	test.ExpectEquality(t, loopEnd > loopStart, true)
	test.ExpectEquality(t, loopStart >= start, true)
	test.ExpectEquality(t, loopEnd <= end, true)

	// sample 1 starts after sample 0 plus the 46 terminator frames
	rec := shdr[46:]
	start = binary.LittleEndian.Uint32(rec[20:24])
	end = binary.LittleEndian.Uint32(rec[24:28])
	test.ExpectEquality(t, start, uint32(146))
	test.ExpectEquality(t, end, uint32(246))
}

func TestKeysplitZoneOrder(t *testing.T) {
	b := buildFixture(t)
	chunks := parseBack(t, b)

	// instrument 1 has three zones. ibag gives the generator index of each
	ibag := chunks["ibag"]
	inst := chunks["inst"]

	// instrument 1's first bag index
	bagNdx := int(binary.LittleEndian.Uint16(inst[22+20 : 22+22]))
	test.ExpectEquality(t, bagNdx, 1)

	igen := chunks["igen"]

	expectedRanges := [][2]byte{{0, 39}, {40, 79}, {80, 127}}
	for z := 0; z < 3; z++ {
		genNdx := int(binary.LittleEndian.Uint16(ibag[(bagNdx+z)*4 : (bagNdx+z)*4+2]))
		gens := igen[genNdx*4:]

		// key range is the first generator of the zone
		test.ExpectEquality(t, binary.LittleEndian.Uint16(gens[0:2]), uint16(43))
		test.ExpectEquality(t, gens[2], expectedRanges[z][0])
		test.ExpectEquality(t, gens[3], expectedRanges[z][1])

		// sample ID is the last generator of the zone
		last := gens[8*4 : 9*4]
		test.ExpectEquality(t, binary.LittleEndian.Uint16(last[0:2]), uint16(53))
	}
}

func TestRootKeyResolution(t *testing.T) {
	b := buildFixture(t)
	chunks := parseBack(t, b)

	ibag := chunks["ibag"]
	igen := chunks["igen"]

	rootKeyOf := func(zone int) int16 {
		genNdx := int(binary.LittleEndian.Uint16(ibag[zone*4 : zone*4+2]))
		gens := igen[genNdx*4:]

		// overriding root key is the seventh generator of the zone
		off := 6 * 4
		test.DemandEquality(t, binary.LittleEndian.Uint16(gens[off:off+2]), uint16(58))
		return int16(binary.LittleEndian.Uint16(gens[off+2 : off+4]))
	}

	// zone 0 (simple instrument): no override, sample 0 root key
	test.ExpectEquality(t, rootKeyOf(0), int16(69))

	// instrument 1 zone 1: explicit override
	test.ExpectEquality(t, rootKeyOf(2), int16(50))

	// instrument 1 zone 2: sample 1 root key
	test.ExpectEquality(t, rootKeyOf(3), int16(60))
}

func TestNameTruncation(t *testing.T) {
	b := sf2.NewBuilder("bank")
	s := b.AddSample("a-sample-name-well-beyond-the-twenty-byte-slot", []byte{128, 128}, 22050, 60, -1, -1)
	b.AddPreset("p", 0, 0, b.AddSimpleInstrument("i", s, voicegroup.Envelope{}, -1))

	chunks := parseBack(t, b)

	shdr := chunks["shdr"]
	name := shdr[:20]

	// truncated, with at least one terminating null
	test.ExpectEquality(t, string(name[:19]), "a-sample-name-well-")
	test.ExpectEquality(t, name[19], byte(0))
}

func TestDuplicatePresetsPermitted(t *testing.T) {
	b := buildFixture(t)

	// a duplicate (bank, program) pair produces two preset records
	b.AddPreset("dup", 0, 0, 0)

	chunks := parseBack(t, b)
	test.ExpectEquality(t, len(chunks["phdr"]), (3+1)*38)
}
