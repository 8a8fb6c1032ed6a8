package moderation

import (
	"bufio"
	"bytes"
	"io/fs"
	"strings"

	"study-hub/errors"
)

// Wordlist carries the loaded blacklist plus metadata for logging.
type Wordlist struct {
	Words     []string
	Languages []string
}

// LoadWordlist scans a directory of an fs.FS, treating every .txt file as
// one language dictionary, one word per line. Blank lines are skipped and
// duplicates across languages collapse to one entry.
func LoadWordlist(fsys fs.FS, path string) (*Wordlist, error) {
	entries, err := fs.ReadDir(fsys, path)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		lang := strings.TrimSuffix(entry.Name(), ".txt")
		languages = append(languages, lang)

		data, err := fs.ReadFile(fsys, path+"/"+entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings correctly.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWordlist
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	return &Wordlist{Words: words, Languages: languages}, nil
}
