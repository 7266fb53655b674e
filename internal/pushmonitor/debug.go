package pushmonitor

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// DebugStatusTable renders every tracked push as a plain-text table for
// ad-hoc inspection. It is not part of the admin RPC surface; it exists
// for tests and manual debugging only.
func (m *Monitor) DebugStatusTable() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := table.NewWriter()
	t.AppendHeader(table.Row{"topic", "status", "partitions", "strategy", "detail"})

	for topic, p := range m.pushes {
		detail, _ := p.StatusDetails.Get()
		t.AppendRow(table.Row{topic, p.CurrentStatus.String(), len(p.Partitions), string(p.Strategy), detail})
	}

	return t.Render()
}
