package timeline

// DefaultBucketSeconds is the width of one lookup bucket.
const DefaultBucketSeconds = 10.0

// DefaultAdjustThreshold is the offset (seconds) below which a line counts as
// unadjusted.
const DefaultAdjustThreshold = 0.05

// Range is a playback interval in seconds.
type Range struct {
	Start float64
	End   float64
}

// Offset is the distance of an effective interval from its baseline.
type Offset struct {
	Start float64
	End   float64
}

// ViewKind tells whether a View addresses a single line or a virtual group.
type ViewKind int

const (
	ViewLine ViewKind = iota
	ViewGroup
)

func (k ViewKind) String() string {
	if k == ViewGroup {
		return "group"
	}
	return "line"
}

// View is a navigable unit: one line or one virtual group.
type View struct {
	Kind ViewKind
	ID   string
}

// LineView returns the view of a single line.
func LineView(id string) View { return View{Kind: ViewLine, ID: id} }

// GroupView returns the view of a virtual group.
func GroupView(id string) View { return View{Kind: ViewGroup, ID: id} }

// Group is a named set of lines navigated as one unit. Meta is owned by the
// caller and never interpreted.
type Group struct {
	ID      string
	LineIDs []string
	Meta    map[string]any
}

type targetKind int

const (
	targetNone targetKind = iota
	targetTime
	targetID
	targetView
)

// Target is anything a seek range can be computed for. Build one with AtTime,
// ByID, ForView or Session.TargetOf.
type Target struct {
	kind targetKind
	time float64
	id   string
	view View
}

// AtTime targets whichever line is active at seconds.
func AtTime(seconds float64) Target { return Target{kind: targetTime, time: seconds} }

// ByID targets a line id, or a group id when no line has that id.
func ByID(id string) Target { return Target{kind: targetID, id: id} }

// ForView targets an explicit view.
func ForView(v View) Target { return Target{kind: targetView, view: v} }

// State is an immutable snapshot of a session. A new snapshot is published on
// every change, so pointer comparison is enough to detect one.
type State struct {
	Time float64
	// ActiveLineID is empty when the session holds no lines.
	ActiveLineID string
	// ActiveView pins range queries; nil follows the clock-derived line.
	ActiveView *View
	Groups     []Group
	// ActiveViewRange is derived from ActiveView, else ActiveLineID.
	ActiveViewRange *Range
}

// CurrentView returns the pinned view, else the active line, else false.
func (s *State) CurrentView() (View, bool) {
	if s.ActiveView != nil {
		return *s.ActiveView, true
	}
	if s.ActiveLineID != "" {
		return LineView(s.ActiveLineID), true
	}
	return View{}, false
}

// Clock is a time source able to drive a session on its own.
type Clock interface {
	OnTimeUpdate(fn func(seconds float64)) (unsubscribe func())
	Now() float64
}

// Accessors read timing and identity from the caller's line type.
type Accessors[T any] struct {
	ID    func(T) string
	Start func(T) float64
	End   func(T) float64
	// AdjustedStart and AdjustedEnd are optional. When they report true the
	// value replaces the raw time as the line's baseline.
	AdjustedStart func(T) (float64, bool)
	AdjustedEnd   func(T) (float64, bool)
}

func (a Accessors[T]) baseline(line T) (start, end float64) {
	start, end = a.Start(line), a.End(line)
	if a.AdjustedStart != nil {
		if v, ok := a.AdjustedStart(line); ok {
			start = v
		}
	}
	if a.AdjustedEnd != nil {
		if v, ok := a.AdjustedEnd(line); ok {
			end = v
		}
	}
	return start, end
}

// Options configures a Session.
type Options[T any] struct {
	Accessors[T]
	Lines []T
	// BucketSeconds is the lookup bucket width; values below 1 are raised to 1
	// and zero means DefaultBucketSeconds.
	BucketSeconds float64
}
