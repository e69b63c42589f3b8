package voice

import (
	"context"
	"errors"
	"sync"

	"smartbiz/audio"
	"smartbiz/intent"
	"smartbiz/log"
)

var (
	ErrNotMounted = errors.New("voice screen is not mounted")
	ErrBusy       = errors.New("previous command is still processing")
)

// Dispatcher sends a finished recording for interpretation. It owns the
// artifact once called.
type Dispatcher interface {
	Upload(ctx context.Context, a *audio.Artifact) (intent.UploadResult, error)
}

type Option func(*Screen)

func WithSink(s EventSink) Option    { return func(sc *Screen) { sc.sink = s } }
func WithCues(c Cues) Option         { return func(sc *Screen) { sc.cues = c } }
func WithNotifier(n Notifier) Option { return func(sc *Screen) { sc.notifier = n } }

// Screen ties the permission gate, recorder and dispatcher to press and
// release gestures. Results that arrive after Unmount, or after a newer
// Mount, are dropped.
type Screen struct {
	gate     *PermissionGate
	rec      *Recorder
	up       Dispatcher
	sink     EventSink
	cues     Cues
	notifier Notifier

	// gesture serializes Press and Release so the recorder never returns to
	// Idle without the dispatch slot already being taken.
	gesture sync.Mutex

	mu        sync.Mutex
	mounted   bool
	gen       uint64
	releasing bool
	uploading bool
	display   DisplayModel
	last      *intent.UploadResult
	commands  int
}

func NewScreen(mic audio.Microphone, up Dispatcher, cfg audio.CaptureConfig, opts ...Option) *Screen {
	gate := NewPermissionGate(mic)
	s := &Screen{
		gate:     gate,
		rec:      NewRecorder(mic, gate, cfg),
		up:       up,
		sink:     noopSink{},
		cues:     noopCues{},
		notifier: noopNotifier{},
		display:  Prompt(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rec.OnStateChange(s.stateChanged)
	return s
}

func (s *Screen) Recorder() *Recorder   { return s.rec }
func (s *Screen) Gate() *PermissionGate { return s.gate }

func (s *Screen) stateChanged(st State) {
	s.mu.Lock()
	mounted := s.mounted
	s.mu.Unlock()
	if mounted {
		s.sink.StateChanged(st)
	}
}

// Mount starts a new screen lifetime and queries microphone permission.
func (s *Screen) Mount(ctx context.Context) audio.Permission {
	s.mu.Lock()
	s.mounted = true
	s.gen++
	s.last = nil
	s.mu.Unlock()

	s.gate.Reset()
	p := s.gate.RequestCapability(ctx)
	if p == audio.PermissionGranted {
		s.show(Prompt())
	} else {
		s.showPermissionNotice()
	}
	s.sink.StateChanged(s.rec.State())
	return p
}

// Unmount tears down any recording and detaches pending uploads from the
// screen. Safe to call more than once.
func (s *Screen) Unmount() {
	s.mu.Lock()
	wasMounted := s.mounted
	s.mounted = false
	s.gen++
	commands := s.commands
	s.commands = 0
	s.mu.Unlock()

	s.rec.ForceTeardown()
	s.gate.Reset()
	if wasMounted {
		log.SessionEnd(commands)
	}
}

// Press begins a recording. Pressing while not idle is a no-op that
// returns ErrNotIdle; pressing while a command is being sent returns ErrBusy.
func (s *Screen) Press(ctx context.Context) error {
	if !s.gesture.TryLock() {
		s.mu.Lock()
		releasing := s.releasing
		s.mu.Unlock()
		if releasing {
			s.show(Busy())
			return ErrBusy
		}
		return ErrNotIdle
	}
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		s.gesture.Unlock()
		return ErrNotMounted
	}
	if s.uploading {
		s.mu.Unlock()
		s.gesture.Unlock()
		s.show(Busy())
		return ErrBusy
	}
	s.mu.Unlock()

	err := s.rec.Start(ctx)
	s.gesture.Unlock()
	switch {
	case err == nil:
		s.cues.Press()
		s.show(DisplayModel{Headline: "Listening…", Detail: "Release to send.", Tone: ToneInfo})
		return nil
	case errors.Is(err, ErrPermissionDenied):
		s.showPermissionNotice()
	case errors.Is(err, ErrHardware):
		s.cues.Failure()
		s.show(Present(intent.Failure(intent.KindHardware)))
	}
	return err
}

// Release stops the recording and dispatches the artifact. The returned
// channel closes when the upload has finished and its result, if still
// wanted, has been displayed.
func (s *Screen) Release(ctx context.Context) (<-chan struct{}, error) {
	s.gesture.Lock()
	s.mu.Lock()
	s.releasing = true
	s.mu.Unlock()

	a, err := s.rec.Stop(ctx)

	s.mu.Lock()
	s.releasing = false
	mounted, gen := s.mounted, s.gen
	if err == nil && mounted {
		s.uploading = true
	}
	s.mu.Unlock()
	s.gesture.Unlock()

	if err != nil {
		if errors.Is(err, ErrHardware) {
			s.cues.Failure()
			s.show(Present(intent.Failure(intent.KindHardware)))
		}
		return nil, err
	}
	s.cues.Release()
	if !mounted {
		a.Discard()
		return nil, ErrNotMounted
	}
	s.sink.Uploading(true)
	s.show(DisplayModel{Headline: "Processing…", Detail: "Sending your command.", Tone: ToneInfo})

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Unmount must not cancel the request; its result is dropped instead.
		res, err := s.up.Upload(context.WithoutCancel(ctx), a)
		switch {
		case errors.Is(err, intent.ErrUploadInFlight):
			s.rejected(gen)
			return
		case err != nil:
			log.Warnf("upload failed: %v", err)
			res = intent.UploadResult{ErrorKind: intent.KindNetwork, ResponseText: err.Error()}
		}
		s.finish(gen, res)
	}()
	return done, nil
}

// rejected undoes a dispatch the uploader refused because another upload
// owns it. No result is recorded.
func (s *Screen) rejected(gen uint64) {
	s.mu.Lock()
	s.uploading = false
	mounted := s.mounted
	current := mounted && gen == s.gen
	s.mu.Unlock()

	log.Warn("upload_rejected_in_flight")
	if mounted {
		s.sink.Uploading(false)
	}
	if current {
		s.show(Prompt())
	}
}

func (s *Screen) finish(gen uint64, res intent.UploadResult) {
	s.mu.Lock()
	s.uploading = false
	if !s.mounted || gen != s.gen {
		mounted := s.mounted
		s.mu.Unlock()
		if mounted {
			s.sink.Uploading(false)
		}
		log.Info("upload_result_discarded")
		return
	}
	s.last = &res
	s.commands++
	m := Present(res)
	s.display = m
	s.mu.Unlock()

	s.sink.Uploading(false)
	s.sink.Display(m)

	transcription := ""
	if res.Transcription != nil {
		transcription = *res.Transcription
	}
	if d, ok := res.Decision.Get(); ok {
		log.Decision(d.Intent, d.Item, d.Quantity, d.Unit)
		log.VoiceCommand(transcription, DescribeDecision(d))
	} else {
		log.VoiceCommand(transcription, res.ErrorKind.String()+": "+res.ResponseText)
	}

	if res.ErrorKind == intent.KindNone {
		s.cues.Success()
		return
	}
	s.cues.Failure()
	if res.ErrorKind == intent.KindServer {
		s.notifier.Notify("SmartBiz: server error", res.ResponseText)
	}
}

func (s *Screen) showPermissionNotice() {
	m := Present(intent.Failure(intent.KindPermission))
	s.show(m)
	s.notifier.Notify("SmartBiz: microphone access", m.Detail)
}

func (s *Screen) show(m DisplayModel) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.display = m
	s.mu.Unlock()
	s.sink.Display(m)
}

func (s *Screen) State() State { return s.rec.State() }

func (s *Screen) Display() DisplayModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

func (s *Screen) Uploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploading
}

// Last returns the most recent result delivered to this mount.
func (s *Screen) Last() (intent.UploadResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return intent.UploadResult{}, false
	}
	return *s.last, true
}
