package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoomNumber(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  ParsedRoomNumber
		expectErr bool
	}{
		{
			name:     "Plain three digits",
			raw:      "312",
			expected: ParsedRoomNumber{Floor: 3, Seq: 12},
		},
		{
			name:     "Block with dash",
			raw:      "A-204",
			expected: ParsedRoomNumber{Block: "A", Floor: 2, Seq: 4},
		},
		{
			name:     "Block with digit and suffix",
			raw:      "b2 1107a",
			expected: ParsedRoomNumber{Block: "B2", Floor: 11, Seq: 7, Suffix: "a"},
		},
		{
			name:     "Hash separator",
			raw:      "C#501",
			expected: ParsedRoomNumber{Block: "C", Floor: 5, Seq: 1},
		},
		{
			name:     "Two digits have no floor",
			raw:      "12",
			expected: ParsedRoomNumber{Floor: 0, Seq: 12},
		},
		{
			name:     "Surrounding whitespace",
			raw:      "  405  ",
			expected: ParsedRoomNumber{Floor: 4, Seq: 5},
		},
		{
			name:      "Empty",
			raw:       "   ",
			expectErr: true,
		},
		{
			name:      "No digits",
			raw:       "Lobby",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseRoomNumber(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}
