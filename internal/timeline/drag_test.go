package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Viewport centred on 10s, 1000px wide: a cue at [10, 12) spans x 500..700.
func newDrag(t *testing.T) (*DragController, *Caption) {
	t.Helper()
	tl, c := newTimeline(t, [2]float64{10, 12}, [2]float64{13, 14})
	return NewDragController(tl, NewViewport(10, 1000)), c
}

func TestViewportMapping(t *testing.T) {
	v := NewViewport(10, 1000)
	assert.Equal(t, 500.0, v.TimeToX(10))
	assert.Equal(t, 700.0, v.TimeToX(12))
	assert.Equal(t, 12.0, v.XToTime(700))
	from, to := v.Window()
	assert.Equal(t, 5.0, from)
	assert.Equal(t, 15.0, to)
}

func TestLayoutSkipsInvisibleCues(t *testing.T) {
	cues := []*Cue{{StartTime: 0, EndTime: 1}, {StartTime: 10, EndTime: 12}}
	boxes := Layout(cues, NewViewport(10, 1000))
	require.Len(t, boxes, 3)
	assert.Equal(t, HitStart, boxes[0].Kind)
	assert.Equal(t, HitEnd, boxes[1].Kind)
	assert.Equal(t, HitBody, boxes[2].Kind)
}

func TestHitTestPrefersHandles(t *testing.T) {
	d, c := newDrag(t)

	box, ok := HitTest(d.Boxes(), 501, 100)
	require.True(t, ok)
	assert.Equal(t, HitStart, box.Kind)
	assert.Same(t, c.Cues[0], box.Cue)

	box, ok = HitTest(d.Boxes(), 600, 100)
	require.True(t, ok)
	assert.Equal(t, HitBody, box.Kind)

	_, ok = HitTest(d.Boxes(), 600, CueTop)
	assert.False(t, ok, "edges are outside")

	assert.Equal(t, "ew-resize", d.Hover(699, 100))
	assert.Equal(t, "pointer", d.Hover(600, 100))
	assert.Equal(t, "grab", d.Hover(100, 100))
}

func TestDragStartHandleResizes(t *testing.T) {
	d, c := newDrag(t)

	d.PointerDown(500, 100, 0)
	res := d.PointerMove(-50)
	assert.Equal(t, DragResized, res.Outcome)
	assert.InDelta(t, 9.5, c.Cues[0].StartTime, 1e-9)
	assert.True(t, c.Changed)
	assert.Nil(t, d.PointerUp())
}

func TestDragEndHandleRejectedAtNextCue(t *testing.T) {
	d, c := newDrag(t)

	d.PointerDown(700, 100, 0)
	res := d.PointerMove(95)
	assert.Equal(t, DragRejected, res.Outcome)
	assert.Equal(t, 12.0, c.Cues[0].EndTime)

	// deltas are relative to the last event, not to the press
	res = d.PointerMove(125)
	assert.Equal(t, DragResized, res.Outcome)
	assert.InDelta(t, 12.3, c.Cues[0].EndTime, 1e-9)
}

func TestDragBodySeeks(t *testing.T) {
	d, c := newDrag(t)

	d.PointerDown(600, 100, 200)
	res := d.PointerMove(300)
	assert.Equal(t, DragSeek, res.Outcome)
	assert.InDelta(t, 9.0, res.Seek, 1e-9)
	assert.Equal(t, 10.0, c.Cues[0].StartTime)
	assert.Nil(t, d.PointerUp(), "a drag is not a click")
}

func TestDragEmptySpaceSeeksAndClamps(t *testing.T) {
	d, _ := newDrag(t)

	d.PointerDown(100, 100, 0)
	res := d.PointerMove(-100)
	assert.Equal(t, DragSeek, res.Outcome)
	assert.InDelta(t, 11.0, res.Seek, 1e-9)

	res = d.PointerMove(5000)
	assert.Equal(t, 0.0, res.Seek)
}

func TestClickSelectsCue(t *testing.T) {
	d, c := newDrag(t)

	d.PointerDown(600, 100, 0)
	assert.Same(t, c.Cues[0], d.PointerUp())

	assert.Equal(t, DragIdle, d.PointerMove(10).Outcome, "no button held")
}

func TestHitKindString(t *testing.T) {
	assert.Equal(t, "cue", HitBody.String())
	assert.Equal(t, "cueStart", HitStart.String())
	assert.Equal(t, "cueEnd", HitEnd.String())
	assert.Equal(t, "HitKind(9)", HitKind(9).String())
}
