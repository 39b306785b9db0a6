package session

import "sync/atomic"

// Source identifies what signalled that an item finished playing.
type Source int32

const (
	SourceTimer Source = iota + 1
	SourcePlayback
)

func (s Source) String() string {
	switch s {
	case SourceTimer:
		return "timer"
	case SourcePlayback:
		return "playback"
	default:
		return "none"
	}
}

// firstWins settles on the first source that resolves it. Later resolutions,
// from any source, are rejected. cancel settles it with no winner.
type firstWins struct {
	winner atomic.Int32
}

func (r *firstWins) resolve(src Source) bool {
	return r.winner.CompareAndSwap(0, int32(src))
}

func (r *firstWins) cancel() {
	r.winner.CompareAndSwap(0, -1)
}

func (r *firstWins) settled() bool {
	return r.winner.Load() != 0
}

func (r *firstWins) won() Source {
	w := r.winner.Load()
	if w < 0 {
		return 0
	}
	return Source(w)
}
