package audit

import (
	"bufio"
	"io"
	"strings"
)

// ExportHeader is the fixed column order of audit exports.
var ExportHeader = []string{"createdAt", "eventType", "success", "userEmail", "sessionId", "ipAddress", "details"}

// EscapeCSV quotes a single field unconditionally, doubling embedded quotes.
// encoding/csv only quotes when needed, which would render empty and null
// values differently from populated ones.
func EscapeCSV(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

type csvWriter struct {
	w *bufio.Writer
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: bufio.NewWriter(w)}
}

func (c *csvWriter) WriteRow(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := c.w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := c.w.WriteString(EscapeCSV(f)); err != nil {
			return err
		}
	}
	_, err := c.w.WriteString("\r\n")
	return err
}

func (c *csvWriter) Flush() error {
	return c.w.Flush()
}
