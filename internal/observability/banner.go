package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const banner = `
   ____      _     _ ____  _ _       _
  / ___|_ __(_) __| |  _ \(_) | ___ | |_
 | |  _| '__| |/ _' | |_) | | |/ _ \| __|
 | |_| | |  | | (_| |  __/| | | (_) | |_
  \____|_|  |_|\__,_|_|   |_|_|\___/ \__|

      >> spreadsheet automation, on request <<
`

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// PrintBanner writes the centered logo to w.
func PrintBanner(w io.Writer) {
	width := termWidth()
	cyan := color.New(color.FgHiCyan).SprintFunc()

	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", padding), cyan(l))
	}
}
