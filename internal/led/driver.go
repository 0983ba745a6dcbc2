// Package led holds the transports that put frames on a physical strip,
// on the console or nowhere at all.
package led

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/ledstrip/internal/effect"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes one frame. It returns once the frame is fully handed off.
	Write(effect.Strip) error
	// Close blanks the output and releases resources.
	Close() error
}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("led: driver closed")

// DefaultFreq is the SPI clock used for the NRZ encoding.
const DefaultFreq = 2500 * physic.KiloHertz

// device is what both nrzled and screen provide.
type device interface {
	io.Writer
	Halt() error
}

// Strand sends packed frames to a periph device. Writes are serialized so a
// frame is never interleaved with another or with Close.
type Strand struct {
	name string
	n    int
	pack Packer

	mu     sync.Mutex
	dev    device
	closer io.Closer
	buf    []byte
}

func newStrand(name string, dev device, closer io.Closer, n int, p Packer) *Strand {
	return &Strand{
		name:   name,
		n:      n,
		pack:   p,
		dev:    dev,
		closer: closer,
		buf:    make([]byte, 0, 3*n),
	}
}

func (s *Strand) String() string { return s.name }

func (s *Strand) Write(strip effect.Strip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return ErrClosed
	}
	if len(strip) != s.n {
		return fmt.Errorf("%s: frame of %d pixels does not match count %d", s.name, len(strip), s.n)
	}
	s.buf = s.pack.Pack(s.buf[:0], strip)
	if _, err := s.dev.Write(s.buf); err != nil {
		return fmt.Errorf("%s write: %w", s.name, err)
	}
	return nil
}

func (s *Strand) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Halt()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	s.dev = nil
	return err
}

// NewNRZ drives a WS2812-style strip through an already opened SPI port.
func NewNRZ(p spi.Port, n int, freq physic.Frequency, pk Packer) (*Strand, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", n)
	}
	if freq <= 0 {
		freq = DefaultFreq
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{NumPixels: n, Channels: 3, Freq: freq})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	if err := d.Halt(); err != nil {
		return nil, fmt.Errorf("nrzled halt: %w", err)
	}
	var c io.Closer
	if pc, ok := p.(io.Closer); ok {
		c = pc
	}
	return newStrand(d.String(), d, c, n, pk), nil
}

// NewSPI initializes the host and opens port; an empty port selects the
// first one available.
func NewSPI(port string, n int, freq physic.Frequency, pk Packer) (*Strand, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", port, err)
	}
	s, err := NewNRZ(p, n, freq, pk)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// NewConsole renders frames as ANSI blocks on stdout.
func NewConsole(n int, pk Packer) *Strand {
	return newStrand("console", consoleDevice{screen.New(n)}, nil, n, pk)
}

// consoleDevice ends each frame with a newline so frames do not overwrite
// log lines.
type consoleDevice struct {
	*screen.Dev
}

func (c consoleDevice) Write(b []byte) (int, error) {
	n, err := c.Dev.Write(b)
	if err != nil {
		return n, err
	}
	_, err = os.Stdout.WriteString("\n")
	return n, err
}

// Name reports which transport d is, as opened. After a fallback in Open
// this differs from the requested Kind.
func Name(d Driver) string {
	if s, ok := d.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", d)
}

// Kind names a transport.
type Kind string

const (
	KindSPI     Kind = "spi"
	KindConsole Kind = "console"
	KindSim     Kind = "sim"
)

// Options selects and configures a transport.
type Options struct {
	Kind   Kind
	Count  int
	Port   string
	Freq   physic.Frequency
	Packer Packer
}

// Open builds the requested driver. If the SPI port cannot be opened it
// falls back to the console.
func Open(o Options, logger *zerolog.Logger) (Driver, error) {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	pk, err := NewPacker(o.Packer)
	if err != nil {
		return nil, err
	}
	if o.Count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", o.Count)
	}
	switch o.Kind {
	case KindSPI, "":
		s, err := NewSPI(o.Port, o.Count, o.Freq, pk)
		if err == nil {
			l.Info().Str("driver", s.String()).Int("count", o.Count).Msg("spi driver ready")
			return s, nil
		}
		l.Warn().Err(err).Str("port", o.Port).Msg("no usable SPI port, printing at the console")
		fallthrough
	case KindConsole:
		return NewConsole(o.Count, pk), nil
	case KindSim:
		return NewSim(o.Count, pk, &l), nil
	}
	return nil, fmt.Errorf("unknown driver %q", o.Kind)
}
