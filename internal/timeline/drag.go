package timeline

import "fmt"

// DefaultPixelsPerSecond is the fixed zoom of the timeline.
const DefaultPixelsPerSecond = 100.0

// Geometry of the cue row inside the timeline, in pixels.
const (
	CueTop      = 40.0
	CueBottom   = 160.0
	HandleWidth = 6.0
)

// Viewport maps the visible time window onto pixels. The playhead sits at
// the horizontal centre.
type Viewport struct {
	Position        float64
	Width           float64
	PixelsPerSecond float64
}

func NewViewport(position, width float64) Viewport {
	return Viewport{Position: position, Width: width, PixelsPerSecond: DefaultPixelsPerSecond}
}

func (v Viewport) TimeToX(t float64) float64 {
	return v.Width/2 + (t-v.Position)*v.PixelsPerSecond
}

func (v Viewport) XToTime(x float64) float64 {
	return v.Position + (x-v.Width/2)/v.PixelsPerSecond
}

// DeltaToSeconds converts a horizontal pointer delta into seconds.
func (v Viewport) DeltaToSeconds(dx float64) float64 {
	return dx / v.PixelsPerSecond
}

// Window is the visible time range.
func (v Viewport) Window() (float64, float64) {
	return v.XToTime(0), v.XToTime(v.Width)
}

type HitKind int

const (
	HitBody HitKind = iota
	HitStart
	HitEnd
)

func (k HitKind) String() string {
	switch k {
	case HitBody:
		return "cue"
	case HitStart:
		return "cueStart"
	case HitEnd:
		return "cueEnd"
	default:
		return fmt.Sprintf("HitKind(%d)", int(k))
	}
}

// Cursor is the pointer shape shown while hovering a box of this kind.
func (k HitKind) Cursor() string {
	switch k {
	case HitBody:
		return "pointer"
	case HitStart, HitEnd:
		return "ew-resize"
	default:
		return "grab"
	}
}

// HitBox is a rectangle of the rendered timeline bound to a cue.
type HitBox struct {
	Kind           HitKind
	Cue            *Cue
	X1, Y1, X2, Y2 float64
}

func (b HitBox) Contains(x, y float64) bool {
	return b.X1 < x && x < b.X2 && b.Y1 < y && y < b.Y2
}

// Layout produces the hit boxes of the visible cues. Handles precede the
// body of their cue so they win hit tests on the edges.
func Layout(cues []*Cue, v Viewport) []HitBox {
	from, to := v.Window()
	boxes := make([]HitBox, 0, len(cues)*3)
	for _, cue := range cues {
		if cue.EndTime < from || cue.StartTime > to {
			continue
		}
		x1, x2 := v.TimeToX(cue.StartTime), v.TimeToX(cue.EndTime)
		boxes = append(boxes,
			HitBox{Kind: HitStart, Cue: cue, X1: x1 - HandleWidth/2, Y1: CueTop, X2: x1 + HandleWidth/2, Y2: CueBottom},
			HitBox{Kind: HitEnd, Cue: cue, X1: x2 - HandleWidth/2, Y1: CueTop, X2: x2 + HandleWidth/2, Y2: CueBottom},
			HitBox{Kind: HitBody, Cue: cue, X1: x1, Y1: CueTop, X2: x2, Y2: CueBottom},
		)
	}
	return boxes
}

// HitTest returns the first box containing the point.
func HitTest(boxes []HitBox, x, y float64) (HitBox, bool) {
	for _, b := range boxes {
		if b.Contains(x, y) {
			return b, true
		}
	}
	return HitBox{}, false
}

type DragOutcome int

const (
	DragIdle DragOutcome = iota
	DragResized
	DragRejected
	DragSeek
)

// DragResult tells the caller what a pointer move did. Seek is the new
// playhead position for DragSeek.
type DragResult struct {
	Outcome DragOutcome
	Seek    float64
}

// DragController turns pointer events over the timeline into cue resizes or
// playhead seeks.
type DragController struct {
	timeline *Timeline
	viewport Viewport
	boxes    []HitBox

	down  bool
	box   *HitBox
	lastX float64
	moved bool
}

func NewDragController(t *Timeline, v Viewport) *DragController {
	d := &DragController{timeline: t}
	d.SetViewport(v)
	return d
}

// SetViewport re-lays out the current caption, e.g. after the playhead moved.
func (d *DragController) SetViewport(v Viewport) {
	d.viewport = v
	d.Relayout()
}

func (d *DragController) Relayout() {
	var cues []*Cue
	if c := d.timeline.Current(); c != nil {
		cues = c.Cues
	}
	d.boxes = Layout(cues, d.viewport)
}

func (d *DragController) Boxes() []HitBox {
	return d.boxes
}

// Hover returns the cursor for the point.
func (d *DragController) Hover(x, y float64) string {
	if b, ok := HitTest(d.boxes, x, y); ok {
		return b.Kind.Cursor()
	}
	return "grab"
}

// PointerDown starts a drag at canvas point (x, y); screenX is the pointer's
// screen coordinate used for deltas.
func (d *DragController) PointerDown(x, y, screenX float64) {
	d.down = true
	d.moved = false
	d.lastX = screenX
	d.box = nil
	if b, ok := HitTest(d.boxes, x, y); ok {
		d.box = &b
	}
}

// PointerMove applies the horizontal delta since the previous event.
func (d *DragController) PointerMove(screenX float64) DragResult {
	if !d.down {
		return DragResult{Outcome: DragIdle}
	}
	dx := screenX - d.lastX
	d.lastX = screenX
	if dx == 0 {
		return DragResult{Outcome: DragIdle}
	}
	d.moved = true
	dt := d.viewport.DeltaToSeconds(dx)

	if d.box == nil {
		return d.seek(dt)
	}

	var ok bool
	switch d.box.Kind {
	case HitStart:
		ok = d.timeline.ResizeCueStart(d.box.Cue, d.box.Cue.StartTime+dt)
	case HitEnd:
		ok = d.timeline.ResizeCueEnd(d.box.Cue, d.box.Cue.EndTime+dt)
	case HitBody:
		return d.seek(dt)
	default:
		panic(fmt.Sprintf("unhandled hit kind %v", d.box.Kind))
	}
	if !ok {
		return DragResult{Outcome: DragRejected}
	}
	d.Relayout()
	return DragResult{Outcome: DragResized}
}

// PointerUp ends the drag. A press and release on a cue body without movement
// is a click and returns that cue for selection.
func (d *DragController) PointerUp() *Cue {
	defer func() {
		d.down = false
		d.box = nil
	}()
	if d.down && !d.moved && d.box != nil && d.box.Kind == HitBody {
		return d.box.Cue
	}
	return nil
}

// seek pans the playhead against the drag direction.
func (d *DragController) seek(dt float64) DragResult {
	position := d.viewport.Position - dt
	if position < 0 {
		position = 0
	}
	d.viewport.Position = position
	d.Relayout()
	return DragResult{Outcome: DragSeek, Seek: position}
}
