// Package purchase gates content behind purchases and runs the checkout flow.
//
// [Gate] keeps the set of bought journeys and the user's unpaid orders. [Checkout] creates and pays
// orders, then refreshes the gate. Purchases made in one session reach the user's other sessions
// through a [Bus]: [LocalBus] inside one process, [RedisBus] across processes.
package purchase
