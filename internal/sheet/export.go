package sheet

import (
	"bufio"
	"io"
	"strings"
)

// Table is a tabular report whose header comes from the field names of its records.
type Table struct {
	Columns []string
	Rows    [][]string
}

// WriteCSV writes the header line bare and every data value double-quoted. A
// table without rows still gets its header line.
func WriteCSV(w io.Writer, table Table) error {
	buf := bufio.NewWriter(w)
	if len(table.Columns) == 0 {
		return buf.Flush()
	}
	if _, err := buf.WriteString(strings.Join(table.Columns, ",")); err != nil {
		return err
	}
	quoted := make([]string, 0, len(table.Columns))
	for _, row := range table.Rows {
		quoted = quoted[:0]
		for _, value := range row {
			quoted = append(quoted, quoteValue(value))
		}
		if _, err := buf.WriteString("\n" + strings.Join(quoted, ",")); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func quoteValue(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
