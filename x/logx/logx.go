// Package logx is the console logger used by the boot loader.
//
// Lines look like the rest of our firmware output:
//
//	[boot] Info: page rewritten addr=0x0100
//
// Formatting avoids fmt so the same code runs on host and MCU builds.
package logx

import (
	"io"

	"mmcboot-go/x/conv"
)

// Logger takes a message plus alternating key/value pairs.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// Level filters console output.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
	LevelOff
)

// Nop discards everything.
var Nop Logger = nop{}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Console writes one line per call to W. Not safe for concurrent use; the
// boot loader never logs from more than one goroutine.
type Console struct {
	W     io.Writer
	Tag   string
	Level Level

	line []byte
}

// New returns a Console at LevelInfo.
func New(w io.Writer, tag string) *Console {
	return &Console{W: w, Tag: tag, Level: LevelInfo}
}

func (c *Console) Debug(msg string, kv ...any) { c.emit(LevelDebug, "Debug: ", msg, kv) }
func (c *Console) Info(msg string, kv ...any)  { c.emit(LevelInfo, "Info: ", msg, kv) }
func (c *Console) Error(msg string, kv ...any) { c.emit(LevelError, "Error: ", msg, kv) }

func (c *Console) emit(lv Level, prefix, msg string, kv []any) {
	if c == nil || c.W == nil || lv < c.Level {
		return
	}
	b := c.line[:0]
	if c.Tag != "" {
		b = append(b, '[')
		b = append(b, c.Tag...)
		b = append(b, "] "...)
	}
	b = append(b, prefix...)
	b = append(b, msg...)
	for i := 0; i < len(kv); i += 2 {
		b = append(b, ' ')
		if k, ok := kv[i].(string); ok {
			b = append(b, k...)
		} else {
			b = append(b, "?"...)
		}
		b = append(b, '=')
		if i+1 < len(kv) {
			b = appendValue(b, kv[i+1])
		} else {
			b = append(b, "<missing>"...)
		}
	}
	b = append(b, '\n')
	c.line = b
	_, _ = c.W.Write(b)
}

func appendValue(b []byte, v any) []byte {
	var num [24]byte
	switch x := v.(type) {
	case string:
		return append(b, x...)
	case []byte:
		return append(b, x...)
	case bool:
		if x {
			return append(b, "true"...)
		}
		return append(b, "false"...)
	case int:
		return append(b, conv.Itoa(num[:], int64(x))...)
	case int32:
		return append(b, conv.Itoa(num[:], int64(x))...)
	case int64:
		return append(b, conv.Itoa(num[:], x)...)
	case uint:
		return append(b, conv.Utoa(num[:], uint64(x))...)
	case uint8:
		return append(b, conv.Utoa(num[:], uint64(x))...)
	case uint16:
		return append(b, conv.Utoa(num[:], uint64(x))...)
	case uint32:
		return append(b, conv.Utoa(num[:], uint64(x))...)
	case uint64:
		return append(b, conv.Utoa(num[:], x)...)
	case error:
		return append(b, x.Error()...)
	case interface{ String() string }:
		return append(b, x.String()...)
	case nil:
		return append(b, "<nil>"...)
	default:
		return append(b, "<unk>"...)
	}
}
