package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrPickerAborted is returned when the user hits ctrl+c in the picker.
var ErrPickerAborted = errors.New("device selection aborted")

// FindDevice returns the device whose name or ID matches name, ignoring case.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i, d := range devices {
		if strings.EqualFold(d.Name, name) || d.ID == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("capture device %q not found", name)
}

// SelectDevice runs the interactive picker on the terminal. A single device
// is returned without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	idx, err := runPicker(devices, os.Stdin, os.Stdout)
	if err != nil {
		return nil, err
	}
	return &devices[idx], nil
}

type picker struct {
	devices []DeviceInfo
	cursor  int
}

// key applies one keypress. done is set on Enter.
func (p *picker) key(b []byte) (done bool, err error) {
	switch {
	case len(b) == 1 && b[0] == 13:
		return true, nil
	case len(b) == 1 && b[0] == 3:
		return false, ErrPickerAborted
	case len(b) == 1 && b[0] == 'j', len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'B':
		if p.cursor < len(p.devices)-1 {
			p.cursor++
		}
	case len(b) == 1 && b[0] == 'k', len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'A':
		if p.cursor > 0 {
			p.cursor--
		}
	}
	return false, nil
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range p.devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[bluetooth, lower quality]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

func runPicker(devices []DeviceInfo, in io.Reader, out io.Writer) (int, error) {
	p := &picker{devices: devices}
	p.render(out)

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}
		done, err := p.key(buf[:n])
		if err != nil {
			fmt.Fprint(out, "\r\n")
			return 0, err
		}
		if done {
			fmt.Fprint(out, "\r\n")
			return p.cursor, nil
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		p.render(out)
	}
}
