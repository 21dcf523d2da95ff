// Package ui implements the terminal output of userimport.
//
// The preview [Model] is a bubbletea program showing every input row with the verdict validation would reach,
// without calling the API. It implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Keyboard navigation uses vim-style bindings (j/k, g/G) with contextual help displayed via charmbracelet/bubbles/help.
//
// The Render* functions produce static, lipgloss-styled output for the import summary, run history and the
// non-interactive preview.
package ui
