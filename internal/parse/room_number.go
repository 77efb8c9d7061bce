package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// optional block prefix ("A", "B2-", "East "), then the digits of the room itself
	roomNumberRe = regexp.MustCompile(`^([A-Za-z]+\d*)?[\s\-#]*(\d+)\s*([A-Za-z])?$`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// ParsedRoomNumber holds the structured parts of a room number.
type ParsedRoomNumber struct {
	Block  string
	Floor  int
	Seq    int
	Suffix string
}

// ParseRoomNumber extracts block, floor and sequence from a room number such
// as "312", "A-204" or "B2 1107a". The last two digits are the sequence on the
// floor; anything before them is the floor. One- and two-digit numbers carry no
// floor information and report floor 0.
func ParseRoomNumber(raw string) (ParsedRoomNumber, error) {
	s := strings.TrimSpace(raw)
	s = spaceRe.ReplaceAllString(s, " ")
	if s == "" {
		return ParsedRoomNumber{}, fmt.Errorf("empty room number")
	}

	m := roomNumberRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedRoomNumber{}, fmt.Errorf("unable to parse room number: %q", raw)
	}

	digits := m[2]
	parsed := ParsedRoomNumber{
		Block:  strings.ToUpper(m[1]),
		Suffix: strings.ToLower(m[3]),
	}

	if len(digits) <= 2 {
		seq, err := strconv.Atoi(digits)
		if err != nil {
			return ParsedRoomNumber{}, fmt.Errorf("unable to parse room number: %q", raw)
		}
		parsed.Seq = seq
		return parsed, nil
	}

	floor, err := strconv.Atoi(digits[:len(digits)-2])
	if err != nil {
		return ParsedRoomNumber{}, fmt.Errorf("unable to parse floor from room number: %q", raw)
	}
	seq, err := strconv.Atoi(digits[len(digits)-2:])
	if err != nil {
		return ParsedRoomNumber{}, fmt.Errorf("unable to parse sequence from room number: %q", raw)
	}
	parsed.Floor = floor
	parsed.Seq = seq
	return parsed, nil
}
