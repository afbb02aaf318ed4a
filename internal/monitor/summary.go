package monitor

import (
	"sort"

	"github.com/opswatch/opswatch/internal/connector"
)

// Summary aggregates the latest check results across the fleet.
type Summary struct {
	Total     int                         `json:"total"`
	Healthy   int                         `json:"healthy_count"`
	Unhealthy int                         `json:"unhealthy_count"`
	ByService map[string]connector.Result `json:"by_service"`
}

// Summary derives fleet totals from the latest results. It issues no
// network calls; services never checked do not appear.
func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{ByService: make(map[string]connector.Result, len(m.latest))}
	for name, res := range m.latest {
		s.Total++
		if res.Healthy {
			s.Healthy++
		} else {
			s.Unhealthy++
		}
		s.ByService[name] = res
	}
	return s
}

// UnhealthyServices returns the names of services whose latest check
// failed, sorted for stable output.
func (m *Monitor) UnhealthyServices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name, res := range m.latest {
		if !res.Healthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LatestResult returns the most recent result for a service, if any.
func (m *Monitor) LatestResult(name string) (connector.Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res, ok := m.latest[name]
	return res, ok
}
