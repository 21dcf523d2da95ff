package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRowsLoaded MsgKind = iota
)

type rowsLoaded struct {
	rows []PreviewRow
	err  error
}

// rowsLoadedMsg is the constructor for [MsgRowsLoaded]
func rowsLoadedMsg(rows []PreviewRow, err error) Msg {
	return Msg{kind: MsgRowsLoaded, data: rowsLoaded{rows: rows, err: err}}
}
