package sweep

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fxnlabs/gemmbench/internal/aggregate"
)

// WriteDebugDump writes the present samples of each label to
// <dir>/<shape tag>_debug.txt.
func WriteDebugDump(dir string, set SampleSet, labels []string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	name := "run_debug.txt"
	if !set.Shape.IsZero() {
		name = set.Shape.Tag() + "_debug.txt"
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, label := range labels {
		values := aggregate.Values(set.Samples[label])
		formatted := make([]string, len(values))
		for i, v := range values {
			formatted[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fmt.Fprintf(w, "%s times: [%s]\n", label, strings.Join(formatted, ", "))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
