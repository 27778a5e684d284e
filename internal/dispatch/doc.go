// Package dispatch runs the lanloc event loop.
//
// A Dispatcher drives one Role (locator, provider or display service)
// through four states:
//
//	INIT      sockets opened, event sources registered
//	RUNNING   wait for the next ready source, run its callback
//	DRAINING  close sockets, wait for readers
//	STOPPED   Run returns
//
// Event sources are the broadcast socket, the regular socket, the
// collection-window timer, an optional periodic tick and signal delivery.
// Socket reader goroutines only read datagrams and queue them. Every
// callback runs on the goroutine that called Run, strictly one at a time and
// in the order events became ready, so the ControlContext and the Registry
// it owns need no locks.
//
// Cancellation is cooperative. SignalState.Watch records the first
// termination signal and wakes the loop; the loop checks the exit flag at
// the top of every iteration and moves to DRAINING. Cancelling the context
// passed to Run has the same effect. Whatever ends the loop, the sockets are
// closed before Run returns.
//
// Only startup failures are returned from Run (*SocketSetupError, or an
// error from Role.Start). Expiry of the collection window is a normal end.
package dispatch
