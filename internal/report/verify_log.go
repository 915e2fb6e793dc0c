package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/fxnlabs/gemmbench/internal/shape"
	"github.com/fxnlabs/gemmbench/internal/verify"
)

const (
	exceptionPrefix = "  Exception: "
	maxDiffPrefix   = "  Max abs diff: "
)

var verifyLineRe = regexp.MustCompile(`^(PASS|FAIL): M=(\d+), K=(\d+), N=(\d+)`)

// VerifyLog writes one PASS or FAIL line per record. Failed records carry an
// indented Exception line when the candidate errored, or a Max abs diff line
// when it returned a result outside tolerance.
type VerifyLog struct {
	w *bufio.Writer
	c io.Closer
}

// NewVerifyLog writes to w.
func NewVerifyLog(w io.Writer) *VerifyLog {
	return &VerifyLog{w: bufio.NewWriter(w)}
}

// CreateVerifyLog truncates or creates the log at path.
func CreateVerifyLog(path string) (*VerifyLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &VerifyLog{w: bufio.NewWriter(f), c: f}, nil
}

// FormatVerifyLine renders the status line of rec.
func FormatVerifyLine(rec verify.Record) string {
	status := "FAIL"
	if rec.Pass {
		status = "PASS"
	}
	return fmt.Sprintf("%s: %s", status, rec.Shape)
}

// Write implements verify.RecordSink. Each record is written and flushed as
// one unit.
func (l *VerifyLog) Write(rec verify.Record) error {
	var b strings.Builder
	b.WriteString(FormatVerifyLine(rec))
	b.WriteByte('\n')
	switch {
	case rec.Pass:
	case rec.Err != "":
		b.WriteString(exceptionPrefix + oneLine(rec.Err) + "\n")
	default:
		b.WriteString(maxDiffPrefix + strconv.FormatFloat(rec.MaxAbsDiff, 'g', -1, 64) + "\n")
	}
	if _, err := l.w.WriteString(b.String()); err != nil {
		return fmt.Errorf("write verify record %s: %w", rec.Shape, err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("write verify record %s: %w", rec.Shape, err)
	}
	return nil
}

func (l *VerifyLog) Close() error {
	if err := l.w.Flush(); err != nil {
		return err
	}
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}

// ParseVerifyLog reads records back from a verify log. Lines that are
// neither status lines nor detail lines of a preceding record are ignored.
func ParseVerifyLog(r io.Reader) ([]verify.Record, error) {
	var records []verify.Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if m := verifyLineRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			// the regexp only admits digits, so Atoi fails only on overflow
			mv, err1 := strconv.Atoi(m[2])
			kv, err2 := strconv.Atoi(m[3])
			nv, err3 := strconv.Atoi(m[4])
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, fmt.Errorf("invalid verify line %q", line)
			}
			records = append(records, verify.Record{
				Shape: shape.Shape{M: mv, K: kv, N: nv},
				Pass:  m[1] == "PASS",
			})
			continue
		}

		if len(records) == 0 {
			continue
		}
		last := &records[len(records)-1]
		switch {
		case strings.HasPrefix(line, exceptionPrefix):
			last.Err = strings.TrimPrefix(line, exceptionPrefix)
		case strings.HasPrefix(line, maxDiffPrefix):
			v, err := strconv.ParseFloat(strings.TrimPrefix(line, maxDiffPrefix), 64)
			if err == nil {
				last.MaxAbsDiff = v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadVerifyLog parses the log at path.
func ReadVerifyLog(path string) ([]verify.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseVerifyLog(f)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
