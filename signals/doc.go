// Package signals provides the in-process signal bus used as one of the two
// IPC transports.
//
// Slots are callbacks registered under a (scope, signal) pair. A sender
// addresses a slot by its own scope and the signal name; the bus offers three
// message kinds:
//
//   - Notification: one-way, delivered to the registered slot if any
//   - Call: delivered like a notification, but the sender blocks in MakeCall
//   - Return: completes the oldest pending MakeCall with the same scope and name
//
// # Payloads
//
// Payloads are normalized to google.protobuf.Value on send, so only
// JSON-compatible data crosses the bus. A call answered with no value at all
// yields a return Message whose Data is nil.
//
// # Timeouts
//
// MakeCall waits up to the configured timeout (20s by default). When the
// timeout elapses and nothing is registered for the signal the call fails with
// ErrUnreachable; when a slot exists but stays silent it fails with
// ErrCallTimeout.
//
// # Ordered emission
//
// Emitter decouples fire-and-forget senders from delivery. Each Emit is
// queued on a lock-free SPSC ring and forwarded by a single worker, so the
// bus observes emits in issue order while the caller returns immediately.
//
//	b := signals.New(ctx, signals.DefaultConfig())
//	b.RegisterSlot("plugin.relay", "login", func(ctx context.Context, msg *signals.Message) {
//	    b.ReturnCall(ctx, "plugin.relay", "login", map[string]any{"ok": true})
//	})
//	reply, err := b.MakeCall(ctx, "plugin.relay", "login", nil, 0)
package signals
