package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{`                    __ _   `, "#2dd4bf"},
	{` __      __ ___   / _| |_ `, "#22d3ee"},
	{` \ \ /\ / // _ \ | |_| __|`, "#38bdf8"},
	{`  \ V  V /|  __/ |  _| |_ `, "#60a5fa"},
	{`   \_/\_/  \___| |_|  \__|`, "#818cf8"},
}

// PrintBanner writes the weft banner to w, colored when w is a capable terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
