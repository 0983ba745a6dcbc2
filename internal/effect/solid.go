package effect

import "github.com/coreman2200/ledstrip/internal/color"

// solidState fills the strip with Color1. A static strip needs no
// repeated writes, so it yields a single frame and then stays exhausted
// until reconfigured.
type solidState struct {
	color    color.RGB
	finished bool
}

func (s *solidState) configure(p Params) {
	s.color = p.Color1
	s.finished = false
}

func (s *solidState) next(n int) (Strip, bool) {
	if s.finished {
		return nil, false
	}
	s.finished = true
	return fill(n, s.color), true
}
