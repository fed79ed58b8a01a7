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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hautbois/agbsound/convert"
	"github.com/hautbois/agbsound/extractor"
	"github.com/hautbois/agbsound/logger"
	"github.com/hautbois/agbsound/modalflag"
	"github.com/hautbois/agbsound/statsview"
	"github.com/hautbois/agbsound/version"
)

func main() {
	md := &modalflag.Modes{Output: os.Stdout}
	md.NewArgs(os.Args[1:])
	md.AddSubModes("EXTRACT", "DUMP", "VERSION")

	p, err := md.Parse()
	switch p {
	case modalflag.ParseHelp:
		os.Exit(0)

	case modalflag.ParseError:
		fmt.Printf("* error: %v\n", err)
		os.Exit(10)
	}

	switch md.Mode() {
	case "EXTRACT":
		err = extract(md)

	case "DUMP":
		err = dump(md)

	case "VERSION":
		err = showVersion(md)
	}

	if err != nil {
		fmt.Printf("* error in %s mode: %s\n", md.String(), err)
		os.Exit(20)
	}
}

// optionFlags declares the input/output location flags shared by the EXTRACT
// and DUMP modes. The returned function gathers the flag values after
// parsing.
func optionFlags(md *modalflag.Modes) func() extractor.Options {
	songDir := md.AddString("songs", "songs", "directory of MIDI songs")
	songList := md.AddString("songlist", "", "song-list config file")
	mix := md.AddString("mix", "", "per-song mix-parameter file")
	groupDir := md.AddString("voicegroups", "voicegroups", "directory of voicegroup include files")
	tablePath := md.AddString("keysplit", "", "keysplit table file")
	sampleDir := md.AddString("samples", "samples", "directory of recorded instrument samples")
	waveDir := md.AddString("waves", "waves", "directory of programmable wave data")
	sfxDir := md.AddString("sfx", "", "directory of standalone sound effects")
	outputDir := md.AddString("out", "out", "output directory")
	soundfont := md.AddString("soundfont", "", "output soundfont path. defaults to the output directory")
	rate := md.AddInt("rate", convert.DefaultSampleRate, "render sample rate")

	return func() extractor.Options {
		return extractor.Options{
			SongDir:           *songDir,
			SongListPath:      *songList,
			MixPath:           *mix,
			VoicegroupDir:     *groupDir,
			KeysplitTablePath: *tablePath,
			SampleDir:         *sampleDir,
			WaveDir:           *waveDir,
			SfxDir:            *sfxDir,
			OutputDir:         *outputDir,
			SoundfontPath:     *soundfont,
			SampleRate:        *rate,
		}
	}
}

func extract(md *modalflag.Modes) error {
	md.NewMode()

	opts := optionFlags(md)
	log := md.AddBool("log", false, "echo debugging log to stdout")
	stats := md.AddBool("statsview", false, "run stats server")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	if *log {
		logger.SetEcho(os.Stdout)
	} else {
		logger.SetEcho(nil)
	}

	if *stats {
		if !statsview.Available() {
			return fmt.Errorf("statsview is not available in this build")
		}
		statsview.Launch(os.Stdout)
	}

	ex, err := extractor.NewExtractor(opts())
	if err != nil {
		return err
	}

	// ctrl-c abandons the batch. in-flight subprocesses are killed through
	// the context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sm, err := ex.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(sm)

	return nil
}

func dump(md *modalflag.Modes) error {
	md.NewMode()

	opts := optionFlags(md)
	viz := md.AddBool("viz", false, "write a dot graph of voicegroup topology instead of a value dump")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	logger.SetEcho(nil)

	ex, err := extractor.NewExtractor(opts())
	if err != nil {
		return err
	}

	if *viz {
		ex.DumpGraph(os.Stdout)
	} else {
		ex.Dump(os.Stdout)
	}

	return nil
}

func showVersion(md *modalflag.Modes) error {
	md.NewMode()

	revision := md.AddBool("v", false, "display revision information")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	ver, rev, _ := version.Version()
	fmt.Printf("%s (%s)\n", version.ApplicationName, ver)
	if *revision {
		fmt.Println(rev)
	}

	return nil
}
