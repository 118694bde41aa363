// Package server provides the local HTTP bridge between a browser video player and a mission tracker.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] and [Recoverer] are the stock middleware.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("POST /player/events").
//
// # Player Bridge
//
// A page playing the mission's video posts its events to [PlayerHandler]:
//
//	POST /player/events {"event":"play|pause|end|unload|error|position","position":12.97,"message":""}
//	GET  /player/state
//
// The handler moves a [BridgePlayer] to the reported position, then drives the tracker. The tracker samples
// the bridge like any other player. Seeks the tracker requests (resuming a stored position) come back to
// the page once, in the next state response.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
