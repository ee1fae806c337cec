package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// PrintTable writes rows as aligned columns to stdout. The first row is
// the header; with noHeader it is skipped.
func PrintTable(table [][]string, noHeader bool) {
	WriteTable(os.Stdout, table, noHeader)
}

func WriteTable(out io.Writer, table [][]string, noHeader bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, row := range table {
		if i == 0 && noHeader {
			continue
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}
