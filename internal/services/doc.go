// Package services is the REST client for the learning platform backend.
//
// # APIService
//
// [APIService] wraps an [http.Client] with a base URL, a per-request timeout and an optional
// [rate.Limiter]. Typed endpoint methods decode JSON answers into [models] types:
//   - journeys: [APIService.Journeys], [APIService.Journey], [APIService.MissionDetail]
//   - progress: [APIService.MissionProgress], [APIService.UpdateMissionProgress], [APIService.DeliverMission]
//   - purchases: [APIService.PurchasedJourneys], [APIService.UserOrders], [APIService.CreateOrder],
//     [APIService.Order], [APIService.PayOrder]
//   - auth: [APIService.Login], [APIService.Register], [APIService.Logout], [APIService.Refresh]
//
// # Authentication
//
// Access tokens are short lived. [APIService.TokenSource] returns an [oauth2.TokenSource] that refreshes
// through POST /auth/refresh using the refresh cookie in the client's jar, and [AuthenticatedClient]
// attaches the bearer token to every request. A failed refresh surfaces as [shared.ErrNotAuthenticated]
// and fires the OnUnauthorized hook.
//
// # Error Handling
//
// Non-2xx answers are [*APIError] values that match the shared sentinels:
//   - [shared.ErrBadRequest] : 400
//   - [shared.ErrNotAuthenticated] : 401
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrConflict] : 409
//   - [shared.ErrGone] : 410
//
// Transport failures wrap [shared.ErrAPIRequest] and deadline overruns wrap [shared.ErrTimeout].
package services
