package sequencer

import "github.com/locolive/playback/internal/domain"

// Cursor is a (group, item) position in a story sequence.
type Cursor struct {
	Group int `json:"group"`
	Item  int `json:"item"`
}

func valid(groups []domain.StoryGroup, c Cursor) bool {
	return c.Group >= 0 && c.Group < len(groups) &&
		c.Item >= 0 && c.Item < len(groups[c.Group].Items)
}

// forward returns the next position, or false past the last item of the
// last group.
func forward(groups []domain.StoryGroup, c Cursor) (Cursor, bool) {
	if c.Item+1 < len(groups[c.Group].Items) {
		return Cursor{Group: c.Group, Item: c.Item + 1}, true
	}
	if c.Group+1 < len(groups) {
		return Cursor{Group: c.Group + 1, Item: 0}, true
	}
	return c, false
}

// backward returns the previous position, or false at the very first item.
func backward(groups []domain.StoryGroup, c Cursor) (Cursor, bool) {
	if c.Item > 0 {
		return Cursor{Group: c.Group, Item: c.Item - 1}, true
	}
	if c.Group > 0 {
		prev := c.Group - 1
		return Cursor{Group: prev, Item: len(groups[prev].Items) - 1}, true
	}
	return c, false
}

type Zone int

const (
	ZoneBackward Zone = iota
	ZoneForward
)

// TapZone maps a horizontal tap position to a navigation direction: the left
// third goes back, the rest goes forward.
func TapZone(x, width float64) Zone {
	if width > 0 && x < width/3 {
		return ZoneBackward
	}
	return ZoneForward
}

type SegmentState int

const (
	SegmentEmpty SegmentState = iota
	SegmentFilling
	SegmentFilled
)

func (s SegmentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s SegmentState) String() string {
	switch s {
	case SegmentFilled:
		return "filled"
	case SegmentFilling:
		return "filling"
	default:
		return "empty"
	}
}

// Segment is one bar of the current group's progress indicator.
type Segment struct {
	ItemID   string       `json:"item_id"`
	State    SegmentState `json:"state"`
	Progress float64      `json:"progress"`
}
