// Package ipc carries calls between the frontend and the backend service.
//
// Two transports are available. The signal transport rides on a
// [signals.Bus] and pairs every call with a return of the same name. The
// loopback transport POSTs JSON to an HTTP service bound to 127.0.0.1 whose
// port is read from local configuration on every call. A [Router] picks one
// of them once, at construction, and exposes a single Call entry point.
//
// Callees are wrapped in a [ReturnCall]. The [Adapter] invokes it, converts
// any failure into an {error, message} envelope and sends the result back
// through the transport family that is active for the process. Callers see
// envelopes re-expanded into [apierr.Error] values.
//
// # Usage
//
//	router := ipc.NewRouter(cfg.Mode(), httpTransport, signalTransport)
//	profile, err := ipc.CallInto[Profile](ctx, router, "get_safe", map[string]any{
//		"endpoint": "profiles",
//	})
package ipc
