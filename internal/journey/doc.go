// Package journey keeps the loaded journey and the live status of its missions.
//
// The merge functions ([WithMissionStatus], [WithLocks] and friends) never modify their input and
// copy only the path to what changed, so unchanged chapters and missions keep their identity across
// snapshots. [Cache] builds every snapshot with them.
package journey
