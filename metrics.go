package main

import (
	"flag"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	gometrics "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
)

const metricsPrefix = "tablehub_"

type metrics struct {
	log  io.Writer
	reg  gometrics.Registry
	tick time.Duration
}

var m *metrics

func init() {
	m = &metrics{
		log:  os.Stderr,
		reg:  gometrics.DefaultRegistry,
		tick: time.Duration(60) * time.Second,
	}
	flag.DurationVar(&m.tick, "metrics.tick", m.tick, "metrics: duration between reports")
}

func startMetrics() {
	if !flag.Parsed() {
		flag.Parse()
	}
	m.start()
}

func finalMetrics() {
	m.writeOnce()
}

func incr(name string, i int64) {
	m.incr(name, i)
}

func decr(name string, i int64) {
	m.decr(name, i)
}

func mark(name string, i int64) {
	m.mark(name, i)
}

func (m metrics) start() {
	go gometrics.WriteJSON(m.reg, m.tick, m.log)
}

func (m metrics) writeOnce() {
	gometrics.WriteJSONOnce(m.reg, m.log)
}

func (m metrics) incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

func (m metrics) decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}

func (m metrics) mark(name string, i int64) {
	gometrics.GetOrRegisterMeter(name, m.reg).Mark(i)
}

// families converts the registry into Prometheus metric families. Counters
// go up and down, so they are exported as gauges; meters as counters.
func (m metrics) families() []*dto.MetricFamily {
	var families []*dto.MetricFamily
	m.reg.Each(func(name string, i interface{}) {
		mf := &dto.MetricFamily{
			Name: proto.String(metricsPrefix + strings.NewReplacer(".", "_", "-", "_").Replace(name)),
			Help: proto.String(name),
		}
		switch metric := i.(type) {
		case gometrics.Counter:
			mf.Type = dto.MetricType_GAUGE.Enum()
			mf.Metric = []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(float64(metric.Count()))}}}
		case gometrics.Meter:
			mf.Type = dto.MetricType_COUNTER.Enum()
			mf.Metric = []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(float64(metric.Count()))}}}
		default:
			return
		}
		families = append(families, mf)
	})
	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	return families
}

func (m metrics) writeText(w io.Writer) error {
	for _, mf := range m.families() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

type metricsHandler struct {
	m *metrics
}

func (mh metricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err := mh.m.writeText(w); err != nil {
		log.WithError(err).Error("could not write metrics")
	}
}
