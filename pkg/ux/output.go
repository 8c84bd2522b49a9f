// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders CLI output. Styled output is used on interactive
// terminals; plain mode strips all styling for pipes and scripts.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Brand palette.
var (
	ColorTealBright = lipgloss.Color("#2CD7C7")
	ColorTeal       = lipgloss.Color("#20B9B4")
	ColorTealDeep   = lipgloss.Color("#16858E")
	ColorAmber      = lipgloss.Color("#E8A33D")
	ColorRed        = lipgloss.Color("#D94F4F")
	ColorGreen      = lipgloss.Color("#3DBD6E")
	ColorGray       = lipgloss.Color("#8A8F98")
)

// Styles are the shared lipgloss styles for all CLI output.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Bold(true).Foreground(ColorTeal),
	Muted:     lipgloss.NewStyle().Foreground(ColorGray),
	Success:   lipgloss.NewStyle().Foreground(ColorGreen),
	Warning:   lipgloss.NewStyle().Foreground(ColorAmber),
	Error:     lipgloss.NewStyle().Bold(true).Foreground(ColorRed),
	Highlight: lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// UX writes output, styled or plain.
type UX struct {
	w     io.Writer
	plain bool
}

// New builds a UX on w. Plain mode disables all styling.
func New(w io.Writer, plain bool) *UX {
	return &UX{w: w, plain: plain}
}

// NewAuto builds a UX on stdout, choosing plain mode when stdout is
// not a terminal.
func NewAuto() *UX {
	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return New(os.Stdout, !interactive)
}

// Plain reports whether styling is disabled.
func (u *UX) Plain() bool { return u.plain }

// Print writes formatted text with no styling applied.
func (u *UX) Print(format string, args ...any) {
	fmt.Fprintf(u.w, format, args...)
}

// Println writes a line with no styling applied.
func (u *UX) Println(args ...any) {
	fmt.Fprintln(u.w, args...)
}

// Styled renders s through style unless plain mode is on.
func (u *UX) Styled(style lipgloss.Style, s string) string {
	if u.plain {
		return s
	}
	return style.Render(s)
}

// Titleln writes a title line.
func (u *UX) Titleln(s string) {
	fmt.Fprintln(u.w, u.Styled(Styles.Title, s))
}

// Mutedln writes a de-emphasized line.
func (u *UX) Mutedln(s string) {
	fmt.Fprintln(u.w, u.Styled(Styles.Muted, s))
}

// Errorln writes an error line.
func (u *UX) Errorln(s string) {
	fmt.Fprintln(u.w, u.Styled(Styles.Error, s))
}

// Successln writes a success line.
func (u *UX) Successln(s string) {
	fmt.Fprintln(u.w, u.Styled(Styles.Success, s))
}

// Box writes s inside the brand box.
func (u *UX) Box(s string) {
	if u.plain {
		fmt.Fprintln(u.w, s)
		return
	}
	fmt.Fprintln(u.w, Styles.Box.Render(s))
}
