// Package repositories implements SQLite persistence for local client state.
//
// Key Implementations:
//   - [SessionRepository] : access tokens kept between runs, soft deleted on logout
//   - [ProgressRepository] : highest mission status and last watch position per user
//
// Sessions carry a sequence number from [NextSequence] so the newest login wins regardless of clock skew.
package repositories
