// Package models defines the domain entities shared by the journeyx packages.
//
// The package contains two categories of types:
//
// 1. Wire types mirroring the platform backend's JSON:
//   - [JourneyDetail] : course structure (chapters and mission summaries) plus optional [UserStatus]
//   - [MissionDetail] : full mission content with its [MissionResource] list
//   - [MissionProgress] : a user's watch position and [MissionStatus] for one mission
//   - [Order], [PurchasedJourney], [DeliverResult], [UserInfo]
//
// 2. Status algebra:
//   - [MissionStatus] orders UNCOMPLETED < COMPLETED < DELIVERED. [MaxStatus] is the join used
//     everywhere a cached status is merged with a fresher one, so statuses never move backward.
//   - [AccessLevel] decides whether a mission needs a session or a purchase.
//
// JourneyDetail holds chapters and missions by pointer. Merge functions in the journey package
// replace only the targeted nodes so unrelated nodes keep their identity between snapshots.
package models
