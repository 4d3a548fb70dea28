package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrLabelCount is returned when the number of label values does not
	// match the metric's label names.
	ErrLabelCount = errors.New("label value count mismatch")

	// ErrNegativeCounter is returned when a counter is decremented.
	ErrNegativeCounter = errors.New("counter cannot decrease")
)

// Kind is the Prometheus metric type.
type Kind string

// Metric kinds.
const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

// Sample is one exposition line.
type Sample struct {
	Name   string
	Labels []Label
	Value  float64
}

// Label is a name/value pair on a sample.
type Label struct {
	Name  string
	Value string
}

// Metric is anything a Registry can expose.
type Metric interface {
	Name() string
	Help() string
	Kind() Kind
	Collect() []Sample
}

type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 { return math.Float64frombits(a.bits.Load()) }

func (a *atomicFloat64) Store(v float64) { a.bits.Store(math.Float64bits(v)) }

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// vec holds one child per label value combination.
type vec[T any] struct {
	name   string
	help   string
	labels []string
	mu     sync.RWMutex
	kids   map[string]*T
	values map[string][]string
	newKid func() *T
}

func newVec[T any](name, help string, labels []string, mk func() *T) vec[T] {
	return vec[T]{
		name:   name,
		help:   help,
		labels: labels,
		kids:   make(map[string]*T),
		values: make(map[string][]string),
		newKid: mk,
	}
}

func (v *vec[T]) with(values []string) (*T, error) {
	if len(values) != len(v.labels) {
		return nil, fmt.Errorf("%w: %s wants %d, got %d", ErrLabelCount, v.name, len(v.labels), len(values))
	}
	key := strings.Join(values, "\x00")

	v.mu.RLock()
	kid, ok := v.kids[key]
	v.mu.RUnlock()
	if ok {
		return kid, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if kid, ok = v.kids[key]; ok {
		return kid, nil
	}
	kid = v.newKid()
	v.kids[key] = kid
	v.values[key] = slices.Clone(values)
	return kid, nil
}

// each visits children in a stable order.
func (v *vec[T]) each(fn func(labels []Label, kid *T)) {
	v.mu.RLock()
	keys := make([]string, 0, len(v.kids))
	for k := range v.kids {
		keys = append(keys, k)
	}
	v.mu.RUnlock()
	slices.Sort(keys)

	for _, k := range keys {
		v.mu.RLock()
		kid, values := v.kids[k], v.values[k]
		v.mu.RUnlock()
		labels := make([]Label, len(values))
		for i, val := range values {
			labels[i] = Label{Name: v.labels[i], Value: val}
		}
		fn(labels, kid)
	}
}

// Counter is a monotonically increasing value, optionally split by labels.
type Counter struct {
	vec[atomicFloat64]
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Help() string { return c.help }
func (c *Counter) Kind() Kind   { return KindCounter }

// Add increments the series identified by values.
func (c *Counter) Add(delta float64, values ...string) error {
	if delta < 0 {
		return ErrNegativeCounter
	}
	kid, err := c.with(values)
	if err != nil {
		return err
	}
	kid.Add(delta)
	return nil
}

// Inc adds one to the series identified by values.
func (c *Counter) Inc(values ...string) error { return c.Add(1, values...) }

// Value returns the current value of a series.
func (c *Counter) Value(values ...string) float64 {
	kid, err := c.with(values)
	if err != nil {
		return 0
	}
	return kid.Load()
}

func (c *Counter) Collect() []Sample {
	var out []Sample
	c.each(func(labels []Label, kid *atomicFloat64) {
		out = append(out, Sample{Name: c.name, Labels: labels, Value: kid.Load()})
	})
	return out
}

// Gauge is a value that can go up and down.
type Gauge struct {
	vec[atomicFloat64]
	fn func() float64
}

func (g *Gauge) Name() string { return g.name }
func (g *Gauge) Help() string { return g.help }
func (g *Gauge) Kind() Kind   { return KindGauge }

// Set sets the series identified by values.
func (g *Gauge) Set(v float64, values ...string) error {
	kid, err := g.with(values)
	if err != nil {
		return err
	}
	kid.Store(v)
	return nil
}

// Add adds delta to the series identified by values.
func (g *Gauge) Add(delta float64, values ...string) error {
	kid, err := g.with(values)
	if err != nil {
		return err
	}
	kid.Add(delta)
	return nil
}

// Value returns the current value of a series.
func (g *Gauge) Value(values ...string) float64 {
	if g.fn != nil {
		return g.fn()
	}
	kid, err := g.with(values)
	if err != nil {
		return 0
	}
	return kid.Load()
}

func (g *Gauge) Collect() []Sample {
	if g.fn != nil {
		return []Sample{{Name: g.name, Value: g.fn()}}
	}
	var out []Sample
	g.each(func(labels []Label, kid *atomicFloat64) {
		out = append(out, Sample{Name: g.name, Labels: labels, Value: kid.Load()})
	})
	return out
}

// DefaultBuckets are request duration buckets in seconds.
var DefaultBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}

type histogramSeries struct {
	mu     sync.Mutex
	counts []uint64
	sum    float64
	count  uint64
}

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	vec[histogramSeries]
	buckets []float64
}

func (h *Histogram) Name() string { return h.name }
func (h *Histogram) Help() string { return h.help }
func (h *Histogram) Kind() Kind   { return KindHistogram }

// Observe records v in the series identified by values.
func (h *Histogram) Observe(v float64, values ...string) error {
	s, err := h.with(values)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, upper := range h.buckets {
		if v <= upper {
			s.counts[i]++
		}
	}
	s.sum += v
	s.count++
	return nil
}

func (h *Histogram) Collect() []Sample {
	var out []Sample
	h.each(func(labels []Label, s *histogramSeries) {
		s.mu.Lock()
		counts := slices.Clone(s.counts)
		sum, count := s.sum, s.count
		s.mu.Unlock()

		for i, upper := range h.buckets {
			le := append(slices.Clone(labels), Label{Name: "le", Value: formatFloat(upper)})
			out = append(out, Sample{Name: h.name + "_bucket", Labels: le, Value: float64(counts[i])})
		}
		inf := append(slices.Clone(labels), Label{Name: "le", Value: "+Inf"})
		out = append(out,
			Sample{Name: h.name + "_bucket", Labels: inf, Value: float64(count)},
			Sample{Name: h.name + "_sum", Labels: labels, Value: sum},
			Sample{Name: h.name + "_count", Labels: labels, Value: float64(count)},
		)
	})
	return out
}

// Registry holds metrics for exposition.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// NewCounter creates and registers a counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{vec: newVec(name, help, labels, func() *atomicFloat64 { return &atomicFloat64{} })}
	r.Register(c)
	return c
}

// NewGauge creates and registers a gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := &Gauge{vec: newVec(name, help, labels, func() *atomicFloat64 { return &atomicFloat64{} })}
	r.Register(g)
	return g
}

// NewGaugeFunc registers an unlabelled gauge whose value is read from fn at
// collection time.
func (r *Registry) NewGaugeFunc(name, help string, fn func() float64) *Gauge {
	g := &Gauge{vec: newVec(name, help, nil, func() *atomicFloat64 { return &atomicFloat64{} }), fn: fn}
	r.Register(g)
	return g
}

// NewHistogram creates and registers a histogram. Nil buckets means
// DefaultBuckets.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	buckets = slices.Clone(buckets)
	slices.Sort(buckets)
	h := &Histogram{buckets: buckets}
	h.vec = newVec(name, help, labels, func() *histogramSeries {
		return &histogramSeries{counts: make([]uint64, len(buckets))}
	})
	r.Register(h)
	return h
}

// Register adds m to the registry. It panics on a duplicate name, which
// would produce invalid exposition output.
func (r *Registry) Register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names[m.Name()] {
		panic("metrics: duplicate metric " + m.Name())
	}
	r.names[m.Name()] = true
	r.metrics = append(r.metrics, m)
}

// WriteText writes every metric in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	r.mu.RLock()
	metrics := slices.Clone(r.metrics)
	r.mu.RUnlock()

	for _, m := range metrics {
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", m.Name(), escape(m.Help(), false), m.Name(), m.Kind()); err != nil {
			return err
		}
		for _, s := range samples {
			if _, err := io.WriteString(w, formatSample(s)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = r.WriteText(w)
	})
}

func formatSample(s Sample) string {
	var b strings.Builder
	b.WriteString(s.Name)
	if len(s.Labels) > 0 {
		b.WriteByte('{')
		for i, l := range s.Labels {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(l.Name)
			b.WriteString(`="`)
			b.WriteString(escape(l.Value, true))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(formatFloat(s.Value))
	b.WriteByte('\n')
	return b.String()
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escape(s string, quotes bool) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	if quotes {
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	return s
}
