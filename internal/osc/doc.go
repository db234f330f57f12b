// Package osc implements the OSC receiver and transmitter on top of a non-blocking datagram
// transport.
//
// A Receiver is driven by its owner: each call to Update polls the socket a bounded number of
// times, decodes what arrived and routes every message either to the handler registered for
// its exact address or to a pending queue. Handlers run inline on the goroutine that calls
// Update. The handler registry is not synchronized; register and remove handlers from the
// goroutine that drives Update. The pending queue is safe for use from any goroutine.
package osc
