package signals

import "sync/atomic"

type MetricsSnapshot struct {
	Slots        int64
	MessagesSent int64
	MessagesRecv int64
	Calls        int64
	Timeouts     int64
}

type Metrics struct {
	slots        atomic.Int64
	messagesSent atomic.Int64
	messagesRecv atomic.Int64
	calls        atomic.Int64
	timeouts     atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordSlot(delta int) {
	m.slots.Add(int64(delta))
}

func (m *Metrics) RecordMessageSent(delta int) {
	m.messagesSent.Add(int64(delta))
}

func (m *Metrics) RecordMessageRecv(delta int) {
	m.messagesRecv.Add(int64(delta))
}

func (m *Metrics) RecordCall() {
	m.calls.Add(1)
}

func (m *Metrics) RecordTimeout() {
	m.timeouts.Add(1)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Slots:        m.slots.Load(),
		MessagesSent: m.messagesSent.Load(),
		MessagesRecv: m.messagesRecv.Load(),
		Calls:        m.calls.Load(),
		Timeouts:     m.timeouts.Load(),
	}
}
