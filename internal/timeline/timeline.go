package timeline

import (
	"math"
	"slices"

	"github.com/MimeLyc/subtitle-editor/internal/subtitle"
)

// Caption is the cue list of one language.
type Caption struct {
	LanguageID string
	Label      string
	Changed    bool
	Cues       []*Cue
}

// LoadCaption parses a WebVTT resource into a caption.
func LoadCaption(languageID, label, vtt string) (*Caption, error) {
	file, err := subtitle.ParseVTT(vtt)
	if err != nil {
		return nil, err
	}
	return &Caption{LanguageID: languageID, Label: label, Cues: CuesFromFile(file)}, nil
}

// Timeline owns the captions of one editor session. Edit operations apply to
// the selected caption and keep its cues sorted and non-overlapping.
type Timeline struct {
	captions       []*Caption
	current        string
	spacing        float64
	spacingEnabled bool
}

func New() *Timeline {
	return &Timeline{spacing: DefaultSpacing, spacingEnabled: true}
}

// SetSpacingEnabled toggles the minimum gap policy. Overlap is rejected either way.
func (t *Timeline) SetSpacingEnabled(enabled bool) {
	t.spacingEnabled = enabled
}

// Spacing is the gap currently enforced between cues.
func (t *Timeline) Spacing() float64 {
	if !t.spacingEnabled {
		return 0
	}
	return t.spacing
}

func (t *Timeline) AddCaption(c *Caption) {
	t.captions = append(t.captions, c)
}

// PrependCaption puts c first, replacing a caption with the same language.
func (t *Timeline) PrependCaption(c *Caption) {
	t.captions = slices.DeleteFunc(t.captions, func(other *Caption) bool {
		return other.LanguageID == c.LanguageID
	})
	t.captions = append([]*Caption{c}, t.captions...)
}

// RemoveCaption drops a language. When it was selected the first remaining
// caption becomes current.
func (t *Timeline) RemoveCaption(languageID string) bool {
	before := len(t.captions)
	t.captions = slices.DeleteFunc(t.captions, func(c *Caption) bool {
		return c.LanguageID == languageID
	})
	if len(t.captions) == before {
		return false
	}
	if t.current == languageID {
		t.current = ""
		if len(t.captions) > 0 {
			t.current = t.captions[0].LanguageID
		}
	}
	return true
}

func (t *Timeline) Captions() []*Caption {
	return t.captions
}

func (t *Timeline) Caption(languageID string) *Caption {
	for _, c := range t.captions {
		if c.LanguageID == languageID {
			return c
		}
	}
	return nil
}

func (t *Timeline) Select(languageID string) bool {
	if t.Caption(languageID) == nil {
		return false
	}
	t.current = languageID
	return true
}

// Current returns the selected caption, nil when nothing is selected.
func (t *Timeline) Current() *Caption {
	if t.current == "" {
		return nil
	}
	return t.Caption(t.current)
}

// UnsavedCaption returns the first caption with unsaved changes.
func (t *Timeline) UnsavedCaption() *Caption {
	for _, c := range t.captions {
		if c.Changed {
			return c
		}
	}
	return nil
}

func (t *Timeline) MarkSaved(languageID string) {
	if c := t.Caption(languageID); c != nil {
		c.Changed = false
	}
}

// InsertCue adds a cue of DefaultCueLength starting at at. The cue is shortened
// to end before the next cue; it is not inserted when no room is left.
func (t *Timeline) InsertCue(at float64) (*Cue, bool) {
	c := t.Current()
	if c == nil || at < 0 {
		return nil, false
	}

	end := at + DefaultCueLength
	for _, other := range c.Cues {
		if other.StartTime >= at {
			end = math.Min(end, other.StartTime-t.Spacing())
			break
		}
	}
	if end-at <= epsilon || !t.fits(c, nil, at, end) {
		return nil, false
	}

	cue := &Cue{StartTime: at, EndTime: end}
	c.Cues = append(c.Cues, cue)
	t.touch(c)
	return cue, true
}

// InsertCueAfter inserts after the cue spanning reference, or at reference
// when no cue spans it.
func (t *Timeline) InsertCueAfter(reference float64) (*Cue, bool) {
	c := t.Current()
	if c == nil {
		return nil, false
	}
	start := reference
	for _, other := range c.Cues {
		if other.StartTime <= reference && reference <= other.EndTime {
			start = other.EndTime + t.Spacing()
			break
		}
	}
	return t.InsertCue(start)
}

// InsertCueAfterCue inserts right behind cue.
func (t *Timeline) InsertCueAfterCue(cue *Cue) (*Cue, bool) {
	if cue == nil {
		return nil, false
	}
	return t.InsertCue(cue.EndTime + t.Spacing())
}

// DeleteCue removes cue by identity.
func (t *Timeline) DeleteCue(cue *Cue) bool {
	c := t.Current()
	if c == nil {
		return false
	}
	idx := slices.Index(c.Cues, cue)
	if idx < 0 {
		return false
	}
	c.Cues = slices.Delete(c.Cues, idx, idx+1)
	t.touch(c)
	return true
}

// ResizeCueStart moves the start boundary. Invalid moves are rejected
// without error and leave the cue unchanged.
func (t *Timeline) ResizeCueStart(cue *Cue, newStart float64) bool {
	if cue == nil || newStart < 0 || newStart >= cue.EndTime {
		return false
	}
	return t.apply(cue, newStart, cue.EndTime)
}

// ResizeCueEnd moves the end boundary under the same rules as ResizeCueStart.
func (t *Timeline) ResizeCueEnd(cue *Cue, newEnd float64) bool {
	if cue == nil || newEnd <= cue.StartTime {
		return false
	}
	return t.apply(cue, cue.StartTime, newEnd)
}

// MoveCue shifts both boundaries by delta seconds.
func (t *Timeline) MoveCue(cue *Cue, delta float64) bool {
	if cue == nil || cue.StartTime+delta < 0 {
		return false
	}
	return t.apply(cue, cue.StartTime+delta, cue.EndTime+delta)
}

// SetStartAt sets the start to the playhead position.
func (t *Timeline) SetStartAt(cue *Cue, position float64) bool {
	return t.ResizeCueStart(cue, position)
}

// SetEndAt sets the end to the playhead position.
func (t *Timeline) SetEndAt(cue *Cue, position float64) bool {
	return t.ResizeCueEnd(cue, position)
}

func (t *Timeline) SetText(cue *Cue, text string) {
	if cue == nil || cue.Text == text {
		return
	}
	cue.Text = text
	if c := t.owner(cue); c != nil {
		c.Changed = true
	}
}

// ToggleStyle applies style, or clears it when it is already applied.
func (t *Timeline) ToggleStyle(cue *Cue, style Style) {
	if cue == nil {
		return
	}
	if cue.Style == style {
		cue.Style = StyleNone
	} else {
		cue.Style = style
	}
	if c := t.owner(cue); c != nil {
		c.Changed = true
	}
}

// CueAt returns the first cue of the current caption active at time.
func (t *Timeline) CueAt(time float64) *Cue {
	c := t.Current()
	if c == nil {
		return nil
	}
	for _, cue := range c.Cues {
		if cue.Contains(time) {
			return cue
		}
	}
	return nil
}

// ActiveCues lists the cues shown in the preview at time.
func (t *Timeline) ActiveCues(time float64) []*Cue {
	c := t.Current()
	if c == nil {
		return nil
	}
	var ret []*Cue
	for _, cue := range c.Cues {
		if cue.Contains(time) {
			ret = append(ret, cue)
		}
	}
	return ret
}

// apply commits [start, end) for cue when it keeps the invariants.
func (t *Timeline) apply(cue *Cue, start, end float64) bool {
	c := t.owner(cue)
	if c == nil || !t.fits(c, cue, start, end) {
		return false
	}
	if cue.StartTime == start && cue.EndTime == end {
		return true
	}
	cue.StartTime, cue.EndTime = start, end
	t.touch(c)
	return true
}

// fits reports whether [start, end) keeps the spacing gap to every cue of c
// other than self.
func (t *Timeline) fits(c *Caption, self *Cue, start, end float64) bool {
	gap := t.Spacing()
	for _, other := range c.Cues {
		if other == self {
			continue
		}
		before := other.StartTime-end >= gap-epsilon
		after := start-other.EndTime >= gap-epsilon
		if !before && !after {
			return false
		}
	}
	return true
}

func (t *Timeline) owner(cue *Cue) *Caption {
	if c := t.Current(); c != nil && slices.Contains(c.Cues, cue) {
		return c
	}
	for _, c := range t.captions {
		if slices.Contains(c.Cues, cue) {
			return c
		}
	}
	return nil
}

func (t *Timeline) touch(c *Caption) {
	c.Changed = true
	sortCues(c.Cues)
}
