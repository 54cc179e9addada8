// Package coordinator is the facade between a discovery module, the
// transport stream and the session engine.
//
// Every piece of coordination state is touched only from one worker
// goroutine. Asynchronous hooks (device-list updates, received messages,
// authentication) are dispatched to it; synchronous queries submit a job and
// wait for its result. Network fetches run off the worker and re-dispatch
// their completions.
package coordinator
