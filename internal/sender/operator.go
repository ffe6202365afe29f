package sender

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/term"

	"github.com/banshee-data/pointillist/internal/pump"
)

// ErrAborted is returned when the operator quits at a pause.
var ErrAborted = errors.New("aborted by operator")

// AutoOperator resumes immediately.
type AutoOperator struct{}

func (AutoOperator) AwaitResume(context.Context, Dispenser) error { return nil }

// Key is one decoded keypress.
type Key int

const (
	KeyOther Key = iota
	KeyUp
	KeyDown
	KeyEnter
	KeyQuit
)

// TerminalOperator reads keys at each pause: the up and down arrows move
// the pump by JogUnits, Enter resumes, q or Ctrl-C aborts the run.
type TerminalOperator struct {
	In  io.Reader
	Out io.Writer
	// Fd is put in raw mode while waiting when it refers to a terminal.
	// Use -1 for non-terminal input.
	Fd       int
	JogUnits float64

	keys <-chan keyOrErr
}

type keyOrErr struct {
	key Key
	err error
}

func (o *TerminalOperator) AwaitResume(ctx context.Context, d Dispenser) error {
	if o.Fd >= 0 && term.IsTerminal(o.Fd) {
		state, err := term.MakeRaw(o.Fd)
		if err != nil {
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer func() { _ = term.Restore(o.Fd, state) }()
	}
	if o.keys == nil {
		o.keys = readKeys(o.In)
	}
	units := o.JogUnits
	if units <= 0 {
		units = 1
	}

	o.say("Paused. Change paint, move the syringe with up/down, Enter to continue, q to abort.")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case k, ok := <-o.keys:
			if !ok {
				return fmt.Errorf("%w: input closed", ErrAborted)
			}
			if k.err != nil {
				return k.err
			}
			switch k.key {
			case KeyEnter:
				o.say("Resuming.")
				return nil
			case KeyQuit:
				return ErrAborted
			case KeyUp, KeyDown:
				dir := pump.Up
				if k.key == KeyDown {
					dir = pump.Down
				}
				if d == nil {
					o.say("No pump attached.")
					continue
				}
				if err := d.Dispense(ctx, units, dir); err != nil {
					return err
				}
			default:
				o.say("Unknown key.")
			}
		}
	}
}

// say writes a line. Raw mode disables output post-processing, so the
// carriage return is explicit.
func (o *TerminalOperator) say(msg string) {
	if o.Out != nil {
		_, _ = fmt.Fprint(o.Out, msg+"\r\n")
	}
}

// readKeys decodes keypresses from r until it fails. The reader goroutine
// lives as long as r does, so one operator reuses it across pauses.
func readKeys(r io.Reader) <-chan keyOrErr {
	ch := make(chan keyOrErr)
	go func() {
		defer close(ch)
		br := bufio.NewReader(r)
		for {
			k, err := ReadKey(br)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					ch <- keyOrErr{err: err}
				}
				return
			}
			ch <- keyOrErr{key: k}
		}
	}()
	return ch
}

// ReadKey decodes one keypress, including the three-byte arrow escapes.
func ReadKey(r io.ByteReader) (Key, error) {
	b, err := r.ReadByte()
	if err != nil {
		return KeyOther, err
	}
	switch b {
	case '\r', '\n':
		return KeyEnter, nil
	case 'q', 'Q', 0x03:
		return KeyQuit, nil
	case 0x1b:
		b2, err := r.ReadByte()
		if err != nil {
			return KeyOther, err
		}
		b3, err := r.ReadByte()
		if err != nil {
			return KeyOther, err
		}
		if b2 == '[' {
			switch b3 {
			case 'A':
				return KeyUp, nil
			case 'B':
				return KeyDown, nil
			}
		}
	}
	return KeyOther, nil
}
