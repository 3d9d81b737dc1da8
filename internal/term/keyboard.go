package term

import (
	"github.com/kapitanov/chip8/internal/host"
	"github.com/kapitanov/chip8/internal/vm"
)

// holdFrames is how long a key stays down after its last byte. Terminals
// send no key-up, and autorepeat usually starts after about 250ms.
const holdFrames = 20

const (
	byteCtrlC     = 0x03
	byteBackspace = 0x08
	byteEscape    = 0x1b
	byteDelete    = 0x7f
)

// Physical                Logical
// ================        =================
// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
// | q | w | e | r |       | 4 | 5 | 6 | D |
// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
// | z | x | c | v |       | A | 0 | B | F |
// ================        =================
var keyMap = map[byte]vm.Key{
	'x': vm.Key0,
	'1': vm.Key1,
	'2': vm.Key2,
	'3': vm.Key3,
	'q': vm.Key4,
	'w': vm.Key5,
	'e': vm.Key6,
	'a': vm.Key7,
	's': vm.Key8,
	'd': vm.Key9,
	'z': vm.KeyA,
	'c': vm.KeyB,
	'4': vm.KeyC,
	'r': vm.KeyD,
	'f': vm.KeyE,
	'v': vm.KeyF,
}

func keyForByte(b byte) (vm.Key, bool) {
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	key, ok := keyMap[b]
	return key, ok
}

// keyboard turns a stream of terminal bytes into key-down and key-up events.
type keyboard struct {
	hold [vm.KeyCount]int
}

// feed handles the bytes read during one frame. Keys not seen for
// holdFrames frames are released.
func (kb *keyboard) feed(data []byte, keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for i := 0; i < len(data); i++ {
		b := data[i]

		switch b {
		case byteCtrlC:
			return host.ErrQuit

		case byteBackspace, byteDelete:
			return host.ErrReboot

		case byteEscape:
			// a lone escape quits, an escape sequence (arrow keys etc) is
			// skipped up to its final byte
			if i+1 >= len(data) || data[i+1] != '[' {
				return host.ErrQuit
			}
			i += 2
			for i < len(data) && (data[i] < 0x40 || data[i] > 0x7e) {
				i++
			}
			continue
		}

		key, ok := keyForByte(b)
		if !ok {
			continue
		}

		if kb.hold[key] == 0 {
			keyDown(key)
		}
		kb.hold[key] = holdFrames + 1
	}

	for i := range kb.hold {
		if kb.hold[i] == 0 {
			continue
		}

		kb.hold[i]--
		if kb.hold[i] == 0 {
			keyUp(vm.Key(i))
		}
	}

	return nil
}
