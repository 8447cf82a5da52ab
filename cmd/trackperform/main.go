package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cbegin/trackperform"
	"github.com/cbegin/trackperform/internal/action"
	"github.com/cbegin/trackperform/internal/effects"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 44100, "output sample rate")
		block      = flag.Int("block", 512, "render block size in frames")
		debug      = flag.Bool("debug", false, "log every dispatched action")
		outPath    = flag.String("out", "", "render to a WAV file instead of the audio device")
		seconds    = flag.Float64("seconds", 30, "with -out, seconds to render")
		perfPlay   = flag.Bool("perf-play", false, "replay the recorded performance from the sidecar")
		save       = flag.Bool("save", false, "write the recorded performance to the sidecar on quit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] module.xm\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	p, err := trackperform.NewPerformer(*sampleRate,
		trackperform.WithLogger(logger),
		trackperform.WithBlockFrames(*block),
		trackperform.WithAudioOutput(*outPath == ""),
	)
	if err != nil {
		fatal(logger, "create performer", err)
	}
	defer p.Close()

	if err := p.LoadFile(flag.Arg(0)); err != nil {
		fatal(logger, "load module", err)
	}
	if *perfPlay {
		p.Execute(action.PerformancePlay, 0, 0)
	}

	if *outPath != "" {
		p.Execute(action.Play, 0, 0)
		samples := trackperform.RenderSamples(p, *seconds)
		wav := trackperform.EncodeWAVFloat32LE(samples, p.SampleRate(), 2)
		if err := os.WriteFile(*outPath, wav, 0o644); err != nil {
			fatal(logger, "write wav", err)
		}
		logger.Info("rendered", "path", *outPath, "seconds", *seconds)
		return
	}

	go func() {
		for ev := range p.Watch() {
			switch ev.Kind {
			case trackperform.EventOrderChanged:
				fmt.Printf("order %d\n", ev.Order)
			case trackperform.EventPatternLooped:
				fmt.Printf("pattern loop at order %d\n", ev.Order)
			case trackperform.EventSongLooped:
				fmt.Println("song looped")
			case trackperform.EventPhraseCompleted:
				fmt.Printf("phrase %q completed\n", ev.Phrase)
			}
		}
	}()

	p.Execute(action.Play, 0, 0)
	runConsole(p, logger, os.Stdin)

	if *save {
		if err := p.SaveSidecar(); err != nil {
			logger.Error("save sidecar", "err", err)
		}
	}
}

// runConsole reads commands of the form "<action> [param] [value]" until
// quit or end of input.
func runConsole(p *trackperform.Performer, logger *slog.Logger, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return
		case "status":
			printStatus(p)
			continue
		case "save":
			if err := p.SaveSidecar(); err != nil {
				logger.Error("save sidecar", "err", err)
			}
			continue
		case "phrase":
			if len(fields) < 2 {
				logger.Warn("phrase needs a name")
				continue
			}
			if err := p.TriggerPhrase(fields[1]); err != nil {
				logger.Warn("phrase", "name", fields[1], "err", err)
			}
			continue
		}
		a, param, value, err := parseCommand(fields)
		if err != nil {
			logger.Warn("bad command", "err", err)
			continue
		}
		p.Execute(a, param, value)
	}
}

func parseCommand(fields []string) (action.Action, int, float64, error) {
	a, err := action.Parse(fields[0])
	if err != nil {
		return action.None, 0, 0, err
	}
	var param int
	var value float64
	if len(fields) > 1 {
		param, err = parseParam(a, fields[1])
		if err != nil {
			return action.None, 0, 0, err
		}
	}
	if len(fields) > 2 {
		value, err = strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return action.None, 0, 0, fmt.Errorf("value %q: %w", fields[2], err)
		}
	}
	// Single-argument value actions such as "pitch 1.5".
	if len(fields) == 2 && (a == action.SetPitch || a == action.PatternMode) {
		value, err = strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return action.None, 0, 0, fmt.Errorf("value %q: %w", fields[1], err)
		}
		param = 0
	}
	return a, param, value, nil
}

// parseParam accepts an index or, for effect actions, a stage or parameter
// name.
func parseParam(a action.Action, s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	switch a {
	case action.EffectToggle:
		st, err := effects.ParseStage(s)
		return int(st), err
	case action.EffectParam:
		pr, err := effects.ParseParam(s)
		return int(pr), err
	}
	if a == action.SetPitch || a == action.PatternMode {
		return 0, nil
	}
	return 0, fmt.Errorf("param %q is not an integer", s)
}

func printStatus(p *trackperform.Performer) {
	st, err := p.Status()
	if err != nil {
		fmt.Println("no module loaded")
		return
	}
	phrase, _ := p.ActivePhrase()
	fmt.Printf("playing=%v order=%d/%d pattern=%d row=%d mode=%v pitch=%.3f mute=%#x phrase=%q perf-row=%d recording=%v dropped=%d\n",
		p.Playing(), st.Order, st.Orders, st.Pattern, st.Row, st.Mode, st.Pitch, st.MuteMask,
		phrase, p.PerformanceRow(), p.Recording(), p.Dropped())
	fx := p.Effects()
	for s := effects.Stage(0); s < effects.NumStages; s++ {
		fmt.Printf("  %-10s on=%v\n", s, fx.Enabled[s])
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
