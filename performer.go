package trackperform

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	intaudio "github.com/cbegin/trackperform/internal/audio"
	"github.com/cbegin/trackperform/internal/action"
	"github.com/cbegin/trackperform/internal/decoder"
	"github.com/cbegin/trackperform/internal/decoder/xmdec"
	intfx "github.com/cbegin/trackperform/internal/effects"
	"github.com/cbegin/trackperform/internal/midimap"
	"github.com/cbegin/trackperform/internal/perform"
	"github.com/cbegin/trackperform/internal/phrase"
	"github.com/cbegin/trackperform/internal/playback"
	"github.com/cbegin/trackperform/internal/sidecar"
)

// PlaybackEvent carries transport and song-position events from Watch().
type PlaybackEvent struct {
	Kind   EventKind
	Order  int
	Phrase string
}

type EventKind int

const (
	EventOrderChanged EventKind = iota
	EventPatternLooped
	EventSongLooped
	EventPhraseCompleted
)

// semitone is the pitch step used by PitchUp and PitchDown.
var semitone = math.Pow(2, 1.0/12)

type PerformerOption func(*performerConfig)

type performerConfig struct {
	open        decoder.Opener
	logger      *slog.Logger
	sampleTap   func([]float32)
	effects     *intfx.Settings
	audioOutput bool
	blockFrames int
}

func defaultPerformerConfig() performerConfig {
	return performerConfig{
		open:        xmdec.Open,
		audioOutput: true,
		blockFrames: intaudio.DefaultBlockFrames,
	}
}

// WithDecoder replaces the module decoder (XM by default).
func WithDecoder(open decoder.Opener) PerformerOption {
	return func(cfg *performerConfig) {
		cfg.open = open
	}
}

func WithLogger(logger *slog.Logger) PerformerOption {
	return func(cfg *performerConfig) {
		cfg.logger = logger
	}
}

// WithSampleTap installs a callback invoked with each rendered stereo block
// after effects. The callback runs on the audio thread; keep work brief and
// non-blocking.
func WithSampleTap(tap func([]float32)) PerformerOption {
	return func(cfg *performerConfig) {
		cfg.sampleTap = tap
	}
}

// WithEffectSettings sets the effects state applied at every module load.
func WithEffectSettings(s intfx.Settings) PerformerOption {
	return func(cfg *performerConfig) {
		cfg.effects = &s
	}
}

// WithAudioOutput controls whether a device player is opened on first load.
// Without one, the caller pulls audio through Process.
func WithAudioOutput(enabled bool) PerformerOption {
	return func(cfg *performerConfig) {
		cfg.audioOutput = enabled
	}
}

// WithBlockFrames sets the fixed render block size.
func WithBlockFrames(frames int) PerformerOption {
	return func(cfg *performerConfig) {
		if frames > 0 {
			cfg.blockFrames = frames
		}
	}
}

// Performer is the live controller: it owns the playback controller, the
// performance and phrase engines, the effects chain and the audio output,
// and routes every control action through one dispatcher.
type Performer struct {
	mu          sync.Mutex
	sampleRate  int
	blockFrames int
	logger      *slog.Logger
	cfg         performerConfig

	ctrl    *playback.Controller
	fx      *intfx.Chain
	perf    *perform.Engine
	phrases *phrase.Engine
	midi    atomic.Pointer[midimap.Map]

	// Control-side mirror of the requested pitch, so relative steps compose
	// before the render side has applied them.
	pitch atomic.Uint64 // float64 bits

	audio    *intaudio.Player
	meta     *sidecar.Metadata
	metaPath string

	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

func NewPerformer(sampleRate int, opts ...PerformerOption) (*Performer, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPerformerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.open == nil {
		return nil, errors.New("decoder opener must not be nil")
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Performer{
		sampleRate:  sampleRate,
		blockFrames: cfg.blockFrames,
		logger:      logger,
		cfg:         cfg,
		fx:          intfx.NewChain(sampleRate),
		meta:        &sidecar.Metadata{},
	}
	p.pitch.Store(math.Float64bits(1))
	if cfg.effects != nil {
		p.fx.Apply(*cfg.effects)
	}
	p.ctrl = playback.NewController(sampleRate, cfg.open, playback.Callbacks{
		OrderChanged: func(order int) {
			p.sendEvent(PlaybackEvent{Kind: EventOrderChanged, Order: order})
		},
		RowChanged: func(int, int) { p.rowTick() },
		PatternLooped: func(order int) {
			p.sendEvent(PlaybackEvent{Kind: EventPatternLooped, Order: order})
		},
		SongLooped: func() {
			p.sendEvent(PlaybackEvent{Kind: EventSongLooped})
		},
	}, logger)
	p.perf = perform.New(p.execute)
	p.phrases = phrase.New(p.execute, phrase.Hooks{
		Reset:    func(string) { p.restore() },
		Complete: p.phraseCompleted,
	})
	return p, nil
}

// LoadFile loads a module and its sidecar metadata, if any.
func (p *Performer) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	metaPath := sidecar.Path(path)
	md, err := sidecar.Load(metaPath)
	if err != nil {
		return fmt.Errorf("load sidecar: %w", err)
	}
	if err := p.LoadModule(data, md); err != nil {
		return err
	}
	p.mu.Lock()
	p.metaPath = metaPath
	p.mu.Unlock()
	return nil
}

// LoadModule replaces the playing module. The engines keep running but take
// their phrases, bindings and recorded performance from md, which may be
// nil. Transport is stopped after a load.
func (p *Performer) LoadModule(data []byte, md *sidecar.Metadata) error {
	if md == nil {
		md = &sidecar.Metadata{}
	}
	phrases, err := md.PhraseSet()
	if err != nil {
		return fmt.Errorf("sidecar phrases: %w", err)
	}
	bindings, err := md.Bindings()
	if err != nil {
		return fmt.Errorf("sidecar triggers: %w", err)
	}
	events, err := md.Events()
	if err != nil {
		return fmt.Errorf("sidecar performance: %w", err)
	}

	wasPlaying := p.ctrl.Playing()
	p.ctrl.SetPlaying(false)
	if err := p.ctrl.Load(data); err != nil {
		p.ctrl.SetPlaying(wasPlaying)
		return err
	}

	p.perf.Reset()
	p.perf.Load(events)
	p.phrases.Load(phrases)
	p.midi.Store(midimap.New(bindings))
	p.pitch.Store(math.Float64bits(1))
	if p.cfg.effects != nil {
		p.fx.Apply(*p.cfg.effects)
	}
	p.fx.RequestReset()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta = md
	p.metaPath = ""
	p.logger.Info("performance metadata",
		"phrases", len(phrases), "triggers", len(bindings), "events", len(events))
	if p.cfg.audioOutput && p.audio == nil {
		backend, err := intaudio.NewPlayer(p.sampleRate, p.blockFrames, p)
		if err != nil {
			return fmt.Errorf("open audio output: %w", err)
		}
		p.audio = backend
		p.audio.Play()
	}
	return nil
}

// SaveSidecar writes the recorded performance back next to the module
// loaded with LoadFile.
func (p *Performer) SaveSidecar() error {
	p.mu.Lock()
	md, path := p.meta, p.metaPath
	p.mu.Unlock()
	if path == "" {
		return errors.New("no sidecar path; module was not loaded from a file")
	}
	md.SetEvents(p.perf.Events())
	if err := sidecar.Save(path, md); err != nil {
		return fmt.Errorf("save sidecar: %w", err)
	}
	p.logger.Info("sidecar saved", "path", path, "events", len(md.Performance))
	return nil
}

// Process renders one block: playback, then effects, then the sample tap.
// It implements the audio sample source.
func (p *Performer) Process(dst []float32) {
	p.ctrl.Render(dst)
	p.fx.Process(dst)
	if p.cfg.sampleTap != nil {
		p.cfg.sampleTap(dst)
	}
}

func (p *Performer) SampleRate() int  { return p.sampleRate }
func (p *Performer) BlockFrames() int { return p.blockFrames }

// Execute dispatches a user action.
func (p *Performer) Execute(a action.Action, param int, value float64) {
	if !a.Valid() {
		p.logger.Warn("ignoring invalid action", "action", a)
		return
	}
	p.logger.Debug("action", "action", a, "param", param, "value", value)
	p.execute(a, param, value, action.SourceUser)
}

// TriggerPhrase starts a phrase by name.
func (p *Performer) TriggerPhrase(name string) error {
	for i, n := range p.phrases.Names() {
		if n == name {
			p.logger.Info("phrase triggered", "phrase", name)
			p.Execute(action.TriggerPhrase, i, 0)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", phrase.ErrUnknownPhrase, name)
}

// HandleMIDI runs the bindings matching msg and reports how many fired.
func (p *Performer) HandleMIDI(msg midi.Message) int {
	m := p.midi.Load()
	if m == nil {
		return 0
	}
	n := m.Dispatch(msg, p.execute)
	if n == 0 {
		p.logger.Debug("unbound midi message", "msg", msg.String())
	}
	return n
}

// execute is the single action handler shared by user input, performance
// playback and phrases. It may run on the audio thread, so it must not block
// or log.
func (p *Performer) execute(a action.Action, param int, value float64, src action.Source) {
	if src == action.SourceUser {
		p.perf.Record(a, param, value)
	}
	switch a {
	case action.Play:
		p.ctrl.SetPlaying(true)
	case action.Pause:
		p.ctrl.SetPlaying(false)
	case action.Stop:
		p.stop()
	case action.NextOrder:
		p.stepOrder(1)
	case action.PrevOrder:
		p.stepOrder(-1)
	case action.JumpToOrder:
		p.ctrl.Enqueue(playback.JumpToOrder(param))
	case action.JumpToPattern:
		p.ctrl.Enqueue(playback.JumpToPattern(param))
	case action.QueueOrder:
		p.ctrl.Enqueue(playback.QueueOrder(param))
	case action.QueuePattern:
		p.ctrl.Enqueue(playback.QueuePattern(param))
	case action.PatternMode:
		p.setPatternMode(value != 0)
	case action.SetLoopRows:
		p.ctrl.Enqueue(playback.SetLoopRows(param))
	case action.LoopTillRow:
		p.ctrl.Enqueue(playback.LoopTillRow(param))
	case action.Retrigger:
		p.ctrl.Enqueue(playback.Retrigger())
	case action.ChannelMute:
		p.ctrl.Enqueue(playback.ToggleMute(param))
	case action.ChannelSolo:
		p.ctrl.Enqueue(playback.ToggleSolo(param))
	case action.ChannelVolume:
		p.ctrl.Enqueue(playback.SetVolume(param, value))
	case action.MuteAll:
		p.ctrl.Enqueue(playback.MuteAll())
	case action.UnmuteAll:
		p.ctrl.Enqueue(playback.UnmuteAll())
	case action.SetPitch:
		p.setPitch(value)
	case action.PitchUp:
		p.setPitch(p.Pitch() * semitone)
	case action.PitchDown:
		p.setPitch(p.Pitch() / semitone)
	case action.PitchReset:
		p.setPitch(1)
	case action.EffectToggle:
		p.fx.Toggle(intfx.Stage(param))
	case action.EffectParam:
		p.fx.SetParam(intfx.Param(param), float32(value))
	case action.TriggerPhrase:
		if p.phrases.TriggerIndex(param) == nil {
			p.ctrl.SetPlaying(true)
		}
	case action.StopPhrase:
		p.phrases.Stop()
	case action.PerformanceRecord:
		p.perf.SetRecording(!p.perf.Recording())
	case action.PerformancePlay:
		p.perf.SetPlayback(!p.perf.Playing())
	case action.PerformanceReset:
		p.perf.Reset()
	}
}

// stop halts the transport and returns everything to the song start.
func (p *Performer) stop() {
	p.ctrl.SetPlaying(false)
	p.ctrl.Enqueue(playback.JumpToOrder(0))
	p.perf.Reset()
	p.phrases.Stop()
	p.fx.RequestReset()
}

// stepOrder moves to a neighbouring order: at the next loop boundary while a
// pattern loop is running, immediately otherwise.
func (p *Performer) stepOrder(delta int) {
	st, err := p.ctrl.Status()
	if err != nil {
		return
	}
	target := st.Order + delta
	if target < 0 || target >= st.Orders {
		return
	}
	if st.Mode == playback.PatternLoop {
		p.ctrl.Enqueue(playback.QueueOrder(target))
		return
	}
	p.ctrl.Enqueue(playback.JumpToOrder(target))
}

func (p *Performer) setPatternMode(on bool) {
	p.ctrl.Enqueue(playback.SetPatternMode(on))
}

func (p *Performer) setPitch(v float64) {
	v = playback.ClampPitch(v)
	p.pitch.Store(math.Float64bits(v))
	p.ctrl.Enqueue(playback.SetPitch(v))
}

// Pitch returns the most recently requested pitch multiplier.
func (p *Performer) Pitch() float64 {
	return math.Float64frombits(p.pitch.Load())
}

// restore clears the ephemeral state a phrase may have changed.
func (p *Performer) restore() {
	p.ctrl.Enqueue(playback.UnmuteAll())
	p.setPitch(1)
	p.setPatternMode(false)
}

func (p *Performer) phraseCompleted(name string) {
	p.ctrl.SetPlaying(false)
	p.restore()
	p.sendEvent(PlaybackEvent{Kind: EventPhraseCompleted, Phrase: name})
}

// rowTick advances both timing engines once per pattern row. It runs on the
// audio thread from the playback callbacks.
func (p *Performer) rowTick() {
	p.perf.Tick()
	p.phrases.Tick()
}

func (p *Performer) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Watch returns a channel that receives playback events:
//   - EventOrderChanged: the song moved to a new order
//   - EventPatternLooped: a pattern loop or loop-till-row pass wrapped
//   - EventSongLooped: the last order wrapped to the first
//   - EventPhraseCompleted: a phrase ran its last step
//
// The channel is buffered (cap 16); events are dropped when it is full.
// Only the most recent Watch() channel receives events.
func (p *Performer) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 16)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// Status returns the playback position and mixer state.
func (p *Performer) Status() (playback.Status, error) {
	return p.ctrl.Status()
}

func (p *Performer) Playing() bool { return p.ctrl.Playing() }

// Dropped returns how many commands the current session lost to a full queue.
func (p *Performer) Dropped() uint64 { return p.ctrl.Dropped() }

func (p *Performer) Effects() intfx.Settings { return p.fx.Snapshot() }

// Performance returns the recorded performance events.
func (p *Performer) Performance() []perform.Event { return p.perf.Events() }

func (p *Performer) Recording() bool { return p.perf.Recording() }

func (p *Performer) PerformanceRow() int64 { return p.perf.Row() }

func (p *Performer) Phrases() []string { return p.phrases.Names() }

// ActivePhrase returns the running phrase, if any.
func (p *Performer) ActivePhrase() (string, bool) { return p.phrases.Active() }

// Close stops audio output and releases the module.
func (p *Performer) Close() error {
	p.ctrl.SetPlaying(false)
	p.mu.Lock()
	a := p.audio
	p.audio = nil
	p.mu.Unlock()
	var err error
	if a != nil {
		err = a.Stop()
	}
	if dropped := p.ctrl.Dropped(); dropped > 0 {
		p.logger.Warn("commands dropped on full queue", "count", dropped)
	}
	p.ctrl.Unload()
	return err
}
