package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/coreman2200/ledstrip/internal/color"
	"github.com/coreman2200/ledstrip/internal/effect"
)

// MaxPayloadLen bounds every accepted payload.
const MaxPayloadLen = 32

var (
	// ErrParse marks a payload that does not match its topic's type.
	ErrParse = errors.New("unable to parse parameter")
	// ErrUnknownTopic marks a message on a topic the adapter does not handle.
	ErrUnknownTopic = errors.New("unrecognized topic")
	// ErrSerialize marks an echo that does not fit in MaxPayloadLen.
	ErrSerialize = errors.New("unable to serialize parameter")
)

func parseErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

func checkLen(b []byte) error {
	if len(b) == 0 {
		return parseErr("empty payload")
	}
	if len(b) > MaxPayloadLen {
		return parseErr("payload of %d bytes exceeds %d", len(b), MaxPayloadLen)
	}
	return nil
}

// ParseFloat accepts a bare finite decimal number.
func ParseFloat(b []byte) (float64, error) {
	if err := checkLen(b); err != nil {
		return 0, err
	}
	return parseNumber(b)
}

func parseNumber(b []byte) (float64, error) {
	if !isDecimal(b) {
		return 0, parseErr("%q is not a decimal number", b)
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, parseErr("%q is not a number", b)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, parseErr("%q is not finite", b)
	}
	return v, nil
}

// isDecimal rejects the hex and underscore forms strconv also reads.
func isDecimal(b []byte) bool {
	if bytes.IndexByte(b, '_') >= 0 {
		return false
	}
	d := bytes.TrimLeft(b, "+-")
	return !bytes.HasPrefix(d, []byte("0x")) && !bytes.HasPrefix(d, []byte("0X"))
}

// ParseRGB accepts "r,g,b" with three decimal numbers and no whitespace.
func ParseRGB(b []byte) (color.RGB, error) {
	if err := checkLen(b); err != nil {
		return color.RGB{}, err
	}
	parts := bytes.Split(b, []byte(","))
	if len(parts) != 3 {
		return color.RGB{}, parseErr("expected r,g,b, got %q", b)
	}
	var ch [3]float64
	for i, p := range parts {
		v, err := parseNumber(p)
		if err != nil {
			return color.RGB{}, err
		}
		ch[i] = v
	}
	return color.RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}

// ParseEffect accepts one of the lowercase effect names.
func ParseEffect(b []byte) (effect.Kind, error) {
	if err := checkLen(b); err != nil {
		return 0, err
	}
	k, err := effect.ParseKind(string(b))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return k, nil
}

// FormatFloat renders v as the shortest text ParseFloat reads back exactly.
func FormatFloat(v float64) []byte {
	return strconv.AppendFloat(nil, v, 'g', -1, 64)
}

// FormatRGB renders c in the form ParseRGB accepts. The result may still
// exceed MaxPayloadLen; Encode checks for that.
func FormatRGB(c color.RGB) []byte {
	b := make([]byte, 0, MaxPayloadLen)
	b = strconv.AppendFloat(b, c.R, 'g', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, c.G, 'g', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, c.B, 'g', -1, 64)
	return b
}

// FormatEffect renders k as its wire name.
func FormatEffect(k effect.Kind) []byte {
	return []byte(k.String())
}
