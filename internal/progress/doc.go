// Package progress converts video playback into periodic progress reports.
//
// A [Tracker] is created per mission view. Player events map onto its methods:
//   - ready: [Tracker.Start] seeks to the stored position
//   - play: [Tracker.Play] starts a heartbeat every [Options.Interval]
//   - pause: [Tracker.Pause] stops the heartbeat and reports the position
//   - end: [Tracker.End] reports the full duration and signals completion once
//   - unload: [Tracker.Unload] makes a final best-effort report
//
// Positions are floored to whole seconds and non-positive samples are skipped.
// Reports go through a [Reporter]; failures are logged and dropped.
package progress
