package voice

// EventSink receives everything the voice screen wants rendered. Calls are
// made from the goroutine that caused the change and must not block.
type EventSink interface {
	StateChanged(s State)
	Uploading(busy bool)
	Display(m DisplayModel)
}

// Cues are short audible signals for gestures and outcomes.
type Cues interface {
	Press()
	Release()
	Success()
	Failure()
}

// Notifier raises out-of-band notices such as desktop notifications.
type Notifier interface {
	Notify(title, message string)
}

type noopSink struct{}

func (noopSink) StateChanged(State)   {}
func (noopSink) Uploading(bool)       {}
func (noopSink) Display(DisplayModel) {}

type noopCues struct{}

func (noopCues) Press()   {}
func (noopCues) Release() {}
func (noopCues) Success() {}
func (noopCues) Failure() {}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string) {}
