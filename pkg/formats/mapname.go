package formats

import (
	"fmt"
	"strings"
)

// DefaultMapName is the starting map of the game.
var DefaultMapName = MapName{X: 'e', Y: '3'}

// MapName identifies an outdoor map "out<x><y>.odm" on the 5x3 world grid,
// with x in a..e from west to east and y in 1..3 from north to south.
type MapName struct {
	X byte
	Y byte
}

// ParseMapName parses names such as "oute3" or "OUTE3.ODM".
func ParseMapName(name string) (MapName, error) {
	s := strings.TrimSuffix(strings.ToLower(name), ".odm")
	if len(s) != 5 || !strings.HasPrefix(s, "out") {
		return MapName{}, fmt.Errorf("invalid map name %q", name)
	}
	n := MapName{X: s[3], Y: s[4]}
	if !n.valid() {
		return MapName{}, fmt.Errorf("invalid map name %q: outside the world grid", name)
	}
	return n, nil
}

func (n MapName) valid() bool {
	return n.X >= 'a' && n.X <= 'e' && n.Y >= '1' && n.Y <= '3'
}

// String returns the entry name, "out<x><y>.odm".
func (n MapName) String() string {
	return fmt.Sprintf("out%c%c.odm", n.X, n.Y)
}

// North returns the map above n.
func (n MapName) North() (MapName, bool) { return n.step(0, -1) }

// South returns the map below n.
func (n MapName) South() (MapName, bool) { return n.step(0, 1) }

// West returns the map left of n.
func (n MapName) West() (MapName, bool) { return n.step(-1, 0) }

// East returns the map right of n.
func (n MapName) East() (MapName, bool) { return n.step(1, 0) }

func (n MapName) step(dx, dy int) (MapName, bool) {
	next := MapName{X: byte(int(n.X) + dx), Y: byte(int(n.Y) + dy)}
	if !next.valid() {
		return n, false
	}
	return next, true
}
