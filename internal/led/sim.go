package led

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ledstrip/internal/effect"
)

// Sim packs frames like a real transport but keeps them in memory. Every
// frame logs a compact summary at debug level.
type Sim struct {
	n    int
	pack Packer
	log  zerolog.Logger

	mu     sync.Mutex
	count  int
	last   []byte
	closed bool
}

func NewSim(n int, pk Packer, logger *zerolog.Logger) *Sim {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Sim{n: n, pack: pk, log: l.With().Str("driver", "sim").Logger()}
}

func (d *Sim) String() string { return string(KindSim) }

func (d *Sim) Write(s effect.Strip) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if len(s) != d.n {
		return fmt.Errorf("sim: frame of %d pixels does not match count %d", len(s), d.n)
	}
	d.last = d.pack.Pack(d.last[:0], s)
	d.count++

	if e := d.log.Debug(); e.Enabled() {
		var r, g, b int
		for i := 0; i+2 < len(d.last); i += 3 {
			r += int(d.last[i])
			g += int(d.last[i+1])
			b += int(d.last[i+2])
		}
		n := max(d.n, 1)
		r0, g0, b0 := s[0].RGB8()
		e.Int("frame", d.count).
			Str("avg", fmt.Sprintf("(%d,%d,%d)", r/n, g/n, b/n)).
			Str("first", fmt.Sprintf("(%d,%d,%d)", r0, g0, b0)).
			Msg("frame")
	}
	return nil
}

// Frames is the number of frames written so far.
func (d *Sim) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Last returns a copy of the most recent packed frame.
func (d *Sim) Last() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.last...)
}

func (d *Sim) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
