package moderation

import "sync/atomic"

// Metrics counts moderation activity. Counters are atomic so the metrics
// endpoint can read them from outside the main loop.
type Metrics struct {
	BansIssued        atomic.Int64
	BansRevoked       atomic.Int64
	AutoBans          atomic.Int64
	WarningsIssued    atomic.Int64
	IPBansIssued      atomic.Int64
	ConnectChecks     atomic.Int64
	ConnectRejections atomic.Int64
	LazyExpiries      atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	BansIssued        int64
	BansRevoked       int64
	AutoBans          int64
	WarningsIssued    int64
	IPBansIssued      int64
	ConnectChecks     int64
	ConnectRejections int64
	LazyExpiries      int64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		BansIssued:        m.BansIssued.Load(),
		BansRevoked:       m.BansRevoked.Load(),
		AutoBans:          m.AutoBans.Load(),
		WarningsIssued:    m.WarningsIssued.Load(),
		IPBansIssued:      m.IPBansIssued.Load(),
		ConnectChecks:     m.ConnectChecks.Load(),
		ConnectRejections: m.ConnectRejections.Load(),
		LazyExpiries:      m.LazyExpiries.Load(),
	}
}
