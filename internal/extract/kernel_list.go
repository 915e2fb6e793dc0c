package extract

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
)

// ErrEmptyKernelList is returned when a kernel list holds no patterns.
var ErrEmptyKernelList = errors.New("kernel list is empty")

// ParseKernelList reads one label or wildcard pattern per line. Blank lines
// and lines starting with # are ignored.
func ParseKernelList(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, ErrEmptyKernelList
	}
	return patterns, nil
}

// LoadKernelList reads and compiles a kernel list file.
func LoadKernelList(path string) ([]Kernel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	patterns, err := ParseKernelList(f)
	if err != nil {
		return nil, err
	}
	return CompileAll(patterns)
}
