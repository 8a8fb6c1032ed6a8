package moderation

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"study-hub/errors"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "badger badger badger",
			expected: "****** ****** ******",
		},
		{
			name: "Leet speak and internal punctuation",
			// B (index 9) . 4 . d . g . € r (index 20) -> 10 characters
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
		},
		{
			name:     "Uppercase and extreme noise",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
		},
		{
			name:     "Accents and special characters (UTF-8)",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I love badger!",
			expected: "I love ******!",
		},
		{
			name:     "Nothing to censor",
			input:    "Study-Hub is amazing",
			expected: "Study-Hub is amazing",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req.Equal(tt.expected, mod.Censor(tt.input), "test=%s,", tt.name)
		})
	}
}

func TestLoadWordlist_Merges_Languages_And_Deduplicates(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"words/en.txt": {Data: []byte("badger\nsnake\n\n")},
		"words/fr.txt": {Data: []byte("badger\r\nblaireau\r\n")},
	}

	wordlist, err := LoadWordlist(fsys, "words")
	req.NoError(err)
	req.ElementsMatch([]string{"en", "fr"}, wordlist.Languages)
	req.ElementsMatch([]string{"badger", "snake", "blaireau"}, wordlist.Words)
}

func TestLoadWordlist_Empty_Directory_Fails(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"words/en.txt": {Data: []byte("\n\n")},
	}

	_, err := LoadWordlist(fsys, "words")
	req.ErrorIs(err, errors.ErrEmptyWordlist)
}
