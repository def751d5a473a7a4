package metric

// MetricItem is one self-contained metric module; components expose their
// internal counters through it as a JSON document.
type MetricItem interface {
	JSONString() string
}

type mockMetricItem struct {
	name string
}

func (mock *mockMetricItem) JSONString() string {
	return mock.name
}
