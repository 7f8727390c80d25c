package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Parley.
func PrintBanner() {
	p := termenv.ColorProfile()
	// Subtle gradient-like color scheme (Indigo/Violet)
	s1 := termenv.String(`  ____   __    ____  __    ____  _  _ `).Foreground(p.Color("#818cf8"))
	s2 := termenv.String(` (  _ \ /__\  (  _ \(  )  ( ___)( \/ )`).Foreground(p.Color("#a78bfa"))
	s3 := termenv.String(`  )___//(__)\  )   / )(__  )__)  \  / `).Foreground(p.Color("#c084fc"))
	s4 := termenv.String(` (__) (__)(__)(_)\_)(____)(____) (__) `).Foreground(p.Color("#e879f9"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println()
}
