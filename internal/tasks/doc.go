// Package tasks orchestrates mission sessions with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines four operations:
//
//  1. [Engine.Open] : open a mission inside its journey
//     - Loads the journey into the status cache, merging per-mission progress
//     - Decides access through the purchase gate before any content request
//     - Fetches mission content and stored progress only when access is granted
//
//  2. [Engine.Deliver] : claim a completed mission's reward through the mission machine
//
//  3. [Engine.Checkout] : create or reuse an unpaid order for a journey and pay it
//
//  4. [Engine.DeliverAll] : deliver every completed mission of the loaded journey
//     - Rate limited worker pool, failures collected per mission
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Tracking
//
// A [MissionView] attaches a player with [MissionView.Track]. Positions go to the backend through the
// mission controller and, when a [StatusStore] is configured, to the local database.
package tasks
