package server

import (
	"strconv"
	"strings"
)

// Direction is the robot's heading. Cyclic order for right turns is
// Up -> Right -> Down -> Left -> Up; left turns reverse it. Unknown is
// the initial value before any movement has revealed a heading.
type Direction int

const (
	DirUnknown Direction = iota
	DirUp
	DirRight
	DirDown
	DirLeft
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirRight:
		return "right"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	default:
		return "unknown"
	}
}

// rotationOrder gives the numeric position used by rotateTo's turn-sign
// rule (§4.4): Up=1, Right=2, Down=3, Left=4.
var rotationOrder = map[Direction]int{DirUp: 1, DirRight: 2, DirDown: 3, DirLeft: 4}

// RotateRight returns the heading one right turn from d.
func (d Direction) RotateRight() Direction {
	switch d {
	case DirUp:
		return DirRight
	case DirRight:
		return DirDown
	case DirDown:
		return DirLeft
	case DirLeft:
		return DirUp
	default:
		return d
	}
}

// RotateLeft returns the heading one left turn from d.
func (d Direction) RotateLeft() Direction {
	switch d {
	case DirUp:
		return DirLeft
	case DirLeft:
		return DirDown
	case DirDown:
		return DirRight
	case DirRight:
		return DirUp
	default:
		return d
	}
}

// Position is a signed grid coordinate.
type Position struct {
	X int
	Y int
}

// Equal reports whether p and o name the same cell.
func (p Position) Equal(o Position) bool {
	return p.X == o.X && p.Y == o.Y
}

// DefaultTarget is the target cell used unless a Config overrides it.
var DefaultTarget = Position{X: -2, Y: 2}

// peer is the interface the navigator needs from the message layer:
// send a payload, and read the next expected message (transparently
// absorbing any recharging pause).
type peer interface {
	send(text string) error
	recv(maxLen int) (string, error)
}

// Navigator drives orientation discovery, navigation to its target, and
// the spiral pickup search described in §4.4.
type Navigator struct {
	peer      peer
	position  Position
	direction Direction
	target    Position
	metrics   *ServerMetrics

	// onState, if set, is called after every confirmed position/heading
	// change so the session can publish live state to the dashboard.
	onState func(Position, Direction)

	// onSecret, if set, is called with the retrieved secret as soon as a
	// non-empty GET MESSAGE reply is seen, before 106 LOGOUT is sent.
	onSecret func(string)
}

// NewNavigator builds a Navigator communicating over p, driving the
// robot to target.
func NewNavigator(p peer, target Position, metrics *ServerMetrics) *Navigator {
	return &Navigator{peer: p, target: target, metrics: metrics}
}

// Position reports the navigator's current known position.
func (n *Navigator) Position() Position { return n.position }

// Direction reports the navigator's current known heading.
func (n *Navigator) Direction() Direction { return n.direction }

func (n *Navigator) publish() {
	if n.onState != nil {
		n.onState(n.position, n.direction)
	}
}

// parseOKConfirmation parses a reply of the exact form "OK <x> <y>":
// exactly three whitespace-separated tokens, literal OK, two signed
// integers, and nothing else.
func parseOKConfirmation(s string) (Position, bool) {
	fields := strings.Fields(s)
	if len(fields) != 3 || fields[0] != "OK" {
		return Position{}, false
	}
	x, errX := strconv.Atoi(fields[1])
	y, errY := strconv.Atoi(fields[2])
	if errX != nil || errY != nil {
		return Position{}, false
	}
	return Position{X: x, Y: y}, true
}

// confirm sends cmd and parses the mandatory "OK <x> <y>" reply,
// updating position (but not direction, which callers manage) on
// success.
func (n *Navigator) confirm(cmd string) (Position, error) {
	if err := n.peer.send(cmd); err != nil {
		return Position{}, &IOError{Err: err}
	}
	if n.metrics != nil {
		n.metrics.IncCommandsSent()
	}
	reply, err := n.peer.recv(MaxOKConfirmationLen)
	if err != nil {
		return Position{}, err
	}
	pos, ok := parseOKConfirmation(reply)
	if !ok {
		return Position{}, n.sendSyntax("malformed confirmation: " + reply)
	}
	n.position = pos
	return pos, nil
}

func (n *Navigator) sendSyntax(msg string) *SyntaxError {
	_ = n.peer.send("301 SYNTAX ERROR")
	if n.metrics != nil {
		n.metrics.IncSyntaxErrors()
	}
	return &SyntaxError{Msg: msg}
}

func (n *Navigator) sendLogic(msg string) *LogicError {
	_ = n.peer.send("302 LOGIC ERROR")
	if n.metrics != nil {
		n.metrics.IncLogicErrors()
	}
	return &LogicError{Msg: msg}
}

// move issues 102 MOVE, repeating it while the robot reports no change
// in position (blocked by an obstacle along the current heading), per
// §4.4's move-repeat rule.
func (n *Navigator) move() (Position, error) {
	for {
		before := n.position
		pos, err := n.confirm("102 MOVE")
		if err != nil {
			return Position{}, err
		}
		n.publish()
		if !pos.Equal(before) {
			return pos, nil
		}
	}
}

func (n *Navigator) rotateRight() error {
	pos, err := n.confirm("104 TURN RIGHT")
	if err != nil {
		return err
	}
	n.direction = n.direction.RotateRight()
	n.position = pos
	n.publish()
	return nil
}

func (n *Navigator) rotateLeft() error {
	pos, err := n.confirm("103 TURN LEFT")
	if err != nil {
		return err
	}
	n.direction = n.direction.RotateLeft()
	n.position = pos
	n.publish()
	return nil
}

// rotateTo turns the robot to heading `to`, one turn at a time, using
// the sign of the numeric difference on rotationOrder. This is not
// always the shortest path; with a known heading it always terminates
// since the difference space is finite mod 4. navigateStep resolves an
// unknown heading before calling it.
func (n *Navigator) rotateTo(to Direction) error {
	for n.direction != to {
		diff := rotationOrder[to] - rotationOrder[n.direction]
		var err error
		if diff > 0 {
			err = n.rotateRight()
		} else {
			err = n.rotateLeft()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// inferOrientation determines heading from the delta between from (the
// position before the second MOVE) and the navigator's position after
// it, per §4.4 step 4.
func (n *Navigator) inferOrientation(from Position) error {
	to, err := n.move()
	if err != nil {
		return err
	}
	switch {
	case from.X == to.X && to.Y > from.Y:
		n.direction = DirUp
	case from.X == to.X && to.Y < from.Y:
		n.direction = DirDown
	case from.Y == to.Y && to.X > from.X:
		n.direction = DirRight
	case from.Y == to.Y && to.X < from.X:
		n.direction = DirLeft
	default:
		return n.sendLogic("no single-axis movement observed during orientation inference")
	}
	n.publish()
	return nil
}

// navigateStep issues one rotate+move pair, correcting Y before X, per
// §4.4's axis-at-a-time rule.
func (n *Navigator) navigateStep(target Position) error {
	if n.direction == DirUnknown {
		// The first MOVE landed on the target, so inference was skipped;
		// one more MOVE reveals the heading before any turn is made.
		return n.inferOrientation(n.position)
	}
	var to Direction
	switch {
	case n.position.Y > target.Y:
		to = DirDown
	case n.position.Y < target.Y:
		to = DirUp
	case n.position.X < target.X:
		to = DirRight
	default:
		to = DirLeft
	}
	if err := n.rotateTo(to); err != nil {
		return err
	}
	_, err := n.move()
	return err
}

// navigateTo repeats navigateStep until the robot occupies target.
func (n *Navigator) navigateTo(target Position) error {
	for !n.position.Equal(target) {
		if err := n.navigateStep(target); err != nil {
			return err
		}
	}
	return nil
}

// spiralBlockSize is the width/height of the pickup search block.
const spiralBlockSize = 5

// stepToCell maps a search step s in [0, 24] to its grid cell, per
// §4.4's boustrophedon (serpentine) enumeration anchored at n.target.
func (n *Navigator) stepToCell(step int) Position {
	row := step / spiralBlockSize
	col := step % spiralBlockSize
	x := n.target.X + col
	if row%2 != 0 {
		x = n.target.X + (spiralBlockSize - 1 - col)
	}
	return Position{X: x, Y: n.target.Y - row}
}

// cellToStep is stepToCell's inverse: it recovers the enumeration index
// for an arbitrary cell inside the pickup block, using true mathematical
// modulo (never negative) per §9.5.
func (n *Navigator) cellToStep(p Position) int {
	colRel := mathMod(p.X-n.target.X, spiralBlockSize)
	row := -(p.Y - n.target.Y)
	if mathMod(row, 2) != 0 {
		return spiralBlockSize*row + (spiralBlockSize - 1 - colRel)
	}
	return spiralBlockSize*row + colRel
}

func mathMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// pickupSearch navigates to n.target and then enumerates the 5x5 block
// in serpentine order, issuing 105 GET MESSAGE at each cell until a
// non-empty reply is returned.
func (n *Navigator) pickupSearch() (string, error) {
	if err := n.navigateTo(n.target); err != nil {
		return "", err
	}
	for {
		if err := n.peer.send("105 GET MESSAGE"); err != nil {
			return "", &IOError{Err: err}
		}
		if n.metrics != nil {
			n.metrics.IncCommandsSent()
		}
		secret, err := n.peer.recv(MaxSecretLen)
		if err != nil {
			return "", err
		}
		if secret != "" {
			if n.metrics != nil {
				n.metrics.IncSecretsFound()
			}
			if n.onSecret != nil {
				n.onSecret(secret)
			}
			return secret, nil
		}
		step := n.cellToStep(n.position)
		if step >= spiralBlockSize*spiralBlockSize-1 {
			return "", n.sendLogic("pickup search exhausted the 5x5 block without a secret")
		}
		if err := n.navigateTo(n.stepToCell(step + 1)); err != nil {
			return "", err
		}
	}
}

// Run drives the full navigation phase of the session lifecycle: the
// initial MOVE, orientation inference (skipped if the first move already
// lands on n.target), navigation to n.target, and the pickup search. On
// success it sends 106 LOGOUT and returns the retrieved secret; the
// LOGOUT line is sent only on this path (§4.4).
func (n *Navigator) Run() (string, error) {
	p1, err := n.move()
	if err != nil {
		return "", err
	}
	if !p1.Equal(n.target) {
		if err := n.inferOrientation(p1); err != nil {
			return "", err
		}
		if err := n.navigateTo(n.target); err != nil {
			return "", err
		}
	}
	secret, err := n.pickupSearch()
	if err != nil {
		return "", err
	}
	if err := n.peer.send("106 LOGOUT"); err != nil {
		return "", &IOError{Err: err}
	}
	return secret, nil
}
