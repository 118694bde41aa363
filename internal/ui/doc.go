// Package ui implements an interactive journey browser using bubbletea's Elm architecture.
//
// The TUI lists every mission of the loaded journey with its status icon and follows the journey cache:
// each published snapshot replaces the list items. Views:
//  1. [MissionListView] : browse missions, deliver the selected one with enter
//  2. [ConfirmView] : confirm delivering every completed mission
//  3. [DeliverView] : monitor bulk delivery progress
//  4. [ResultView] : delivered count, experience and failures
//
// The [Model] implements the standard Init/Update/View pattern. Bulk progress flows through a channel from
// the mission engine, so delivery never blocks rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, a, y/n, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
