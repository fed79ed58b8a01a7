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

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/hautbois/agbsound/logger"
)

// record sizes of the pdta hydra tables, per the SF2 specification.
const (
	phdrRecordSize = 38
	bagRecordSize  = 4
	modRecordSize  = 10
	genRecordSize  = 4
	instRecordSize = 22
	shdrRecordSize = 46
)

// terminatorFrames is the number of zero-valued 16-bit frames appended after
// every sample in the sdta block. The SF2 specification mandates at least 46
// so that interpolators reading past a sample boundary see silence.
const terminatorFrames = 46

// nameSlotSize is the fixed width of every name field. Longer names are
// truncated, never rejected.
const nameSlotSize = 20

// tableSizes holds the byte size of every variable-size chunk, computed from
// record counts before writing begins. The write functions derive their
// output from the same counts, keeping declared and actual sizes equal by
// construction.
type tableSizes struct {
	smpl int
	phdr int
	pbag int
	pmod int
	pgen int
	inst int
	ibag int
	imod int
	igen int
	shdr int

	info int
	sdta int
	pdta int
	riff int
}

func (b *Builder) sizes() tableSizes {
	var s tableSizes

	zones := b.zoneCount()

	// one terminal record at the end of each hydra table
	s.phdr = (len(b.presets) + 1) * phdrRecordSize
	s.pbag = (len(b.presets) + 1) * bagRecordSize
	s.pmod = modRecordSize
	s.pgen = (len(b.presets) + 1) * genRecordSize
	s.inst = (len(b.instruments) + 1) * instRecordSize
	s.ibag = (zones + 1) * bagRecordSize
	s.imod = modRecordSize
	s.igen = (zones*generatorsPerZone + 1) * genRecordSize
	s.shdr = (len(b.samples) + 1) * shdrRecordSize

	for i := range b.samples {
		s.smpl += (len(b.samples[i].Data) + terminatorFrames) * 2
	}

	s.info = 4 + (8 + 4) + (8 + 8) + (8 + b.inamSize())
	s.sdta = 4 + 8 + s.smpl
	s.pdta = 4 +
		(8 + s.phdr) + (8 + s.pbag) + (8 + s.pmod) + (8 + s.pgen) +
		(8 + s.inst) + (8 + s.ibag) + (8 + s.imod) + (8 + s.igen) +
		(8 + s.shdr)
	s.riff = 4 + (8 + s.info) + (8 + s.sdta) + (8 + s.pdta)

	return s
}

// inamSize is the bank name plus terminator, padded to an even length.
func (b *Builder) inamSize() int {
	n := len(b.BankName) + 1
	if n%2 == 1 {
		n++
	}
	return n
}

// Write serializes the current state of the builder to the named file. Note
// that repeated calls serialize whatever has been accumulated at the time of
// the call. I/O errors propagate to the caller.
func (b *Builder) Write(path string) (rerr error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err := f.Close()
		if err != nil && rerr == nil {
			rerr = err
		}
	}()

	w := bufio.NewWriter(f)
	if err := b.WriteTo(w); err != nil {
		return err
	}

	b.logContents()
	logger.Logf(logger.Allow, logTag, "soundfont written to %s", path)

	return w.Flush()
}

// WriteTo serializes the current state of the builder to an io.Writer.
func (b *Builder) WriteTo(w io.Writer) error {
	cw := &chunkWriter{w: w}
	s := b.sizes()

	cw.fourcc("RIFF")
	cw.u32(uint32(s.riff))
	cw.fourcc("sfbk")

	b.writeInfo(cw, s)
	b.writeSdta(cw, s)
	b.writePdta(cw, s)

	return cw.err
}

func (b *Builder) writeInfo(cw *chunkWriter, s tableSizes) {
	cw.fourcc("LIST")
	cw.u32(uint32(s.info))
	cw.fourcc("INFO")

	// SF2 version 2.01
	cw.fourcc("ifil")
	cw.u32(4)
	cw.u16(2)
	cw.u16(1)

	// target sound engine
	cw.fourcc("isng")
	cw.u32(8)
	cw.raw([]byte("EMU8000\x00"))

	// bank name, null terminated and padded to even length
	cw.fourcc("INAM")
	cw.u32(uint32(b.inamSize()))
	inam := make([]byte, b.inamSize())
	copy(inam, b.BankName)
	cw.raw(inam)
}

func (b *Builder) writeSdta(cw *chunkWriter, s tableSizes) {
	cw.fourcc("LIST")
	cw.u32(uint32(s.sdta))
	cw.fourcc("sdta")

	cw.fourcc("smpl")
	cw.u32(uint32(s.smpl))

	for i := range b.samples {
		for _, v := range b.samples[i].Data {
			cw.i16(v)
		}
		for j := 0; j < terminatorFrames; j++ {
			cw.i16(0)
		}
	}
}

func (b *Builder) writePdta(cw *chunkWriter, s tableSizes) {
	cw.fourcc("LIST")
	cw.u32(uint32(s.pdta))
	cw.fourcc("pdta")

	b.writePhdr(cw, s)
	b.writePbag(cw, s)
	b.writePmod(cw, s)
	b.writePgen(cw, s)
	b.writeInst(cw, s)
	b.writeIbag(cw, s)
	b.writeImod(cw, s)
	b.writeIgen(cw, s)
	b.writeShdr(cw, s)
}

func (b *Builder) writePhdr(cw *chunkWriter, s tableSizes) {
	cw.fourcc("phdr")
	cw.u32(uint32(s.phdr))

	// one preset bag per preset, in order
	for i := range b.presets {
		p := &b.presets[i]
		cw.name20(p.Name)
		cw.u16(uint16(p.Program))
		cw.u16(uint16(p.Bank))
		cw.u16(uint16(i))
		cw.u32(0) // library
		cw.u32(0) // genre
		cw.u32(0) // morphology
	}

	// terminal record
	cw.name20("EOP")
	cw.u16(0)
	cw.u16(0)
	cw.u16(uint16(len(b.presets)))
	cw.u32(0)
	cw.u32(0)
	cw.u32(0)
}

func (b *Builder) writePbag(cw *chunkWriter, s tableSizes) {
	cw.fourcc("pbag")
	cw.u32(uint32(s.pbag))

	// each preset zone holds exactly one generator (the instrument)
	for i := range b.presets {
		cw.u16(uint16(i))
		cw.u16(0)
	}

	cw.u16(uint16(len(b.presets)))
	cw.u16(0)
}

func (b *Builder) writePmod(cw *chunkWriter, s tableSizes) {
	cw.fourcc("pmod")
	cw.u32(uint32(s.pmod))

	// modulators are unused; terminal record only
	cw.raw(make([]byte, modRecordSize))
}

func (b *Builder) writePgen(cw *chunkWriter, s tableSizes) {
	cw.fourcc("pgen")
	cw.u32(uint32(s.pgen))

	// the instrument generator must be the last generator of a preset zone
	for i := range b.presets {
		cw.u16(genInstrument)
		cw.u16(uint16(b.presets[i].InstrumentIndex))
	}

	// terminal record
	cw.u16(0)
	cw.u16(0)
}

func (b *Builder) writeInst(cw *chunkWriter, s tableSizes) {
	cw.fourcc("inst")
	cw.u32(uint32(s.inst))

	bag := 0
	for i := range b.instruments {
		cw.name20(b.instruments[i].Name)
		cw.u16(uint16(bag))
		bag += len(b.instruments[i].Zones)
	}

	// terminal record
	cw.name20("EOI")
	cw.u16(uint16(bag))
}

func (b *Builder) writeIbag(cw *chunkWriter, s tableSizes) {
	cw.fourcc("ibag")
	cw.u32(uint32(s.ibag))

	gen := 0
	for i := range b.instruments {
		for range b.instruments[i].Zones {
			cw.u16(uint16(gen))
			cw.u16(0)
			gen += generatorsPerZone
		}
	}

	cw.u16(uint16(gen))
	cw.u16(0)
}

func (b *Builder) writeImod(cw *chunkWriter, s tableSizes) {
	cw.fourcc("imod")
	cw.u32(uint32(s.imod))
	cw.raw(make([]byte, modRecordSize))
}

func (b *Builder) writeIgen(cw *chunkWriter, s tableSizes) {
	cw.fourcc("igen")
	cw.u32(uint32(s.igen))

	for i := range b.instruments {
		for j := range b.instruments[i].Zones {
			b.writeZoneGenerators(cw, &b.instruments[i].Zones[j])
		}
	}

	// terminal record
	cw.u16(0)
	cw.u16(0)
}

// writeZoneGenerators writes the fixed nine generators of one instrument
// zone. Key range must come first and sample ID must come last; the sample
// ID generator terminates the zone's generator list semantically.
func (b *Builder) writeZoneGenerators(cw *chunkWriter, z *Zone) {
	cw.u16(genKeyRange)
	cw.u8(uint8(z.KeyLow))
	cw.u8(uint8(z.KeyHigh))

	cw.u16(genVelRange)
	cw.u8(uint8(z.VelLow))
	cw.u8(uint8(z.VelHigh))

	cw.u16(genAttackVolEnv)
	cw.i16(envAttackTimecents)

	cw.u16(genDecayVolEnv)
	cw.i16(envDecayTimecents)

	cw.u16(genSustainVolEnv)
	cw.i16(envSustainCentibels)

	cw.u16(genReleaseVolEnv)
	cw.i16(envReleaseTimecents)

	cw.u16(genOverridingRootKey)
	cw.i16(int16(b.rootKey(z)))

	looped := z.SampleIndex >= 0 && z.SampleIndex < len(b.samples) && b.samples[z.SampleIndex].looped()
	cw.u16(genSampleModes)
	if looped {
		cw.i16(1)
	} else {
		cw.i16(0)
	}

	cw.u16(genSampleID)
	cw.u16(uint16(z.SampleIndex))
}

func (b *Builder) writeShdr(cw *chunkWriter, s tableSizes) {
	cw.fourcc("shdr")
	cw.u32(uint32(s.shdr))

	// sample offsets within the concatenated sdta blob
	offset := 0
	for i := range b.samples {
		smp := &b.samples[i]
		start := offset
		end := offset + len(smp.Data)

		// loop offsets are absolute within the blob. SF2 stores loop end as
		// one past the last looped sample. a degenerate zero-length loop is
		// never emitted
		loopStart := start
		loopEnd := end
		if smp.looped() {
			ls := clamp(smp.LoopStart, 0, len(smp.Data)-1)
			le := clamp(smp.LoopEnd, ls+1, len(smp.Data))
			loopStart = start + ls
			loopEnd = start + le
		}

		cw.name20(smp.Name)
		cw.u32(uint32(start))
		cw.u32(uint32(end))
		cw.u32(uint32(loopStart))
		cw.u32(uint32(loopEnd))
		cw.u32(uint32(smp.SampleRate))
		cw.u8(uint8(clamp(smp.RootKey, 0, 127)))
		cw.i8(0)  // pitch correction
		cw.u16(0) // sample link
		cw.u16(1) // mono sample

		offset = end + terminatorFrames
	}

	// terminal record
	cw.name20("EOS")
	cw.raw(make([]byte, shdrRecordSize-nameSlotSize))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// chunkWriter wraps an io.Writer with little-endian primitives. The first
// error sticks and suppresses all further writes.
type chunkWriter struct {
	w   io.Writer
	err error
}

func (cw *chunkWriter) raw(p []byte) {
	if cw.err != nil {
		return
	}
	_, cw.err = cw.w.Write(p)
}

func (cw *chunkWriter) fourcc(s string) {
	cw.raw([]byte(s[:4]))
}

func (cw *chunkWriter) u8(v uint8) {
	cw.raw([]byte{v})
}

func (cw *chunkWriter) i8(v int8) {
	cw.u8(uint8(v))
}

func (cw *chunkWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	cw.raw(b[:])
}

func (cw *chunkWriter) i16(v int16) {
	cw.u16(uint16(v))
}

func (cw *chunkWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	cw.raw(b[:])
}

// name20 writes a name into a fixed 20-byte null-padded slot, truncating
// names that are too long.
func (cw *chunkWriter) name20(name string) {
	var b [nameSlotSize]byte
	if len(name) > nameSlotSize-1 {
		name = name[:nameSlotSize-1]
	}
	copy(b[:], name)
	cw.raw(b[:])
}
