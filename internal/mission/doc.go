// Package mission owns mission status for a user session.
//
// [Machine] enforces the forward-only order UNCOMPLETED < COMPLETED < DELIVERED and gates delivery.
// [Controller] binds one mission view to the backend: it reports tracker emissions, applies the
// video-end fast path and delivers rewards.
package mission
