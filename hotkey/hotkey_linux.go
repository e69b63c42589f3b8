//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0

	inputEventSize = 24
)

var modCodes = map[Modifier][]uint16{
	ModCtrl:  {29, 97},
	ModShift: {42, 54},
	ModAlt:   {56, 100},
	ModSuper: {125, 126},
}

var letterCodes = map[byte]uint16{
	'q': 16, 'w': 17, 'e': 18, 'r': 19, 't': 20, 'y': 21, 'u': 22, 'i': 23, 'o': 24, 'p': 25,
	'a': 30, 's': 31, 'd': 32, 'f': 33, 'g': 34, 'h': 35, 'j': 36, 'k': 37, 'l': 38,
	'z': 44, 'x': 45, 'c': 46, 'v': 47, 'b': 48, 'n': 49, 'm': 50,
}

// keyCode maps a key name to its evdev code.
func keyCode(key string) (uint16, error) {
	switch {
	case key == "space":
		return 57, nil
	case len(key) == 1 && key[0] >= 'a' && key[0] <= 'z':
		return letterCodes[key[0]], nil
	case key == "0":
		return 11, nil
	case len(key) == 1 && key[0] >= '1' && key[0] <= '9':
		return uint16(key[0]-'1') + 2, nil
	case strings.HasPrefix(key, "f"):
		n, err := strconv.Atoi(key[1:])
		if err != nil {
			break
		}
		switch {
		case n >= 1 && n <= 10:
			return uint16(58 + n), nil
		case n == 11, n == 12:
			return uint16(76 + n), nil
		}
	}
	return 0, fmt.Errorf("unsupported key %q", key)
}

type linuxHotkey struct {
	combo   Combo
	key     uint16
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	once    sync.Once
}

func New(c Combo) (Hotkey, error) {
	code, err := keyCode(c.Key)
	if err != nil {
		return nil, err
	}
	return &linuxHotkey{
		combo:   c,
		key:     code,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}, nil
}

func (h *linuxHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return errors.New("no keyboard devices found (is user in 'input' group?)")
	}

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return errors.New("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

// readEvents runs until the device file is closed by Unregister.
func (h *linuxHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	held := make(map[uint16]bool)
	var keyHeld bool

	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))
			if evType != evKey {
				continue
			}
			pressed := evValue == keyPress
			released := evValue == keyRelease

			if evCode != h.key {
				if pressed {
					held[evCode] = true
				} else if released {
					delete(held, evCode)
				}
				continue
			}
			if pressed && !keyHeld && h.modsHeld(held) {
				keyHeld = true
				signal(h.keydown)
			} else if released && keyHeld {
				keyHeld = false
				signal(h.keyup)
			}
		}
	}
}

func (h *linuxHotkey) modsHeld(held map[uint16]bool) bool {
	for _, m := range h.combo.Mods {
		codes := modCodes[m]
		if !held[codes[0]] && !held[codes[1]] {
			return false
		}
	}
	return true
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *linuxHotkey) Keyup() <-chan struct{}   { return h.keyup }

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	data, err := os.ReadFile(filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key"))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

// Diagnose reports whether a keyboard can be opened for the global hotkey.
func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", errors.New("no keyboard devices found (is user in 'input' group?)")
	}

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
