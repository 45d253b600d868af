package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
	MetricTypeSummary MetricType = "summary"
)

// Metric 指标, 以名称加标签区分序列
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Count     uint64            `json:"count,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	metrics     map[string]*Metric
	help        map[string]string
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string]*Metric),
		help:      make(map[string]string),
		startTime: time.Now(),
	}
}

// Describe 设置指标说明
func (mc *MetricsCollector) Describe(name, help string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()
	mc.help[name] = help
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.update(name, MetricTypeCounter, labels, func(m *Metric) {
		m.Value += value
	})
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.update(name, MetricTypeGauge, labels, func(m *Metric) {
		m.Value = value
	})
}

// ObserveSummary 记录一次观测, 导出为_sum与_count
func (mc *MetricsCollector) ObserveSummary(name string, value float64, labels map[string]string) {
	mc.update(name, MetricTypeSummary, labels, func(m *Metric) {
		m.Value += value
		m.Count++
	})
}

func (mc *MetricsCollector) update(name string, metricType MetricType, labels map[string]string, apply func(*Metric)) {
	key := seriesKey(name, labels)

	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric, ok := mc.metrics[key]
	if !ok {
		metric = &Metric{
			Name:   name,
			Type:   metricType,
			Labels: copyLabels(labels),
		}
		mc.metrics[key] = metric
	}
	apply(metric)
	metric.Timestamp = time.Now()
}

// GetMetric 获取指标的所有序列
func (mc *MetricsCollector) GetMetric(name string) ([]Metric, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	var result []Metric
	for _, m := range mc.metrics {
		if m.Name == name {
			metricCopy := *m
			metricCopy.Labels = copyLabels(m.Labels)
			result = append(result, metricCopy)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("metric %s not found", name)
	}
	sort.Slice(result, func(i, j int) bool {
		return seriesKey(result[i].Name, result[i].Labels) < seriesKey(result[j].Name, result[j].Labels)
	})
	return result, nil
}

// Value 获取单个序列的当前值, 不存在时返回0
func (mc *MetricsCollector) Value(name string, labels map[string]string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	if m, ok := mc.metrics[seriesKey(name, labels)]; ok {
		return m.Value
	}
	return 0
}

// Start 周期性收集运行时指标, 直到ctx结束
func (mc *MetricsCollector) Start(ctx context.Context, interval time.Duration) {
	mc.collectRuntimeMetrics()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.collectRuntimeMetrics()
		}
	}
}

// collectRuntimeMetrics 收集内存与协程指标
func (mc *MetricsCollector) collectRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.SetGauge("go_memstats_heap_alloc_bytes", float64(m.HeapAlloc), nil)
	mc.SetGauge("go_memstats_heap_sys_bytes", float64(m.HeapSys), nil)
	mc.SetGauge("go_gc_count", float64(m.NumGC), nil)
	mc.SetGauge("go_goroutines", float64(runtime.NumGoroutine()), nil)
	mc.SetGauge("process_uptime_seconds", mc.GetUptime().Seconds(), nil)
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus() string {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	byName := make(map[string][]*Metric)
	for _, m := range mc.metrics {
		byName[m.Name] = append(byName[m.Name], m)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		series := byName[name]
		sort.Slice(series, func(i, j int) bool {
			return formatLabels(series[i].Labels) < formatLabels(series[j].Labels)
		})

		help := mc.help[name]
		if help == "" {
			help = fmt.Sprintf("Metric %s", name)
		}
		fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, series[0].Type)

		for _, m := range series {
			labels := formatLabels(m.Labels)
			if m.Type == MetricTypeSummary {
				fmt.Fprintf(&b, "%s_sum%s %g\n", name, labels, m.Value)
				fmt.Fprintf(&b, "%s_count%s %d\n", name, labels, m.Count)
				continue
			}
			fmt.Fprintf(&b, "%s%s %g\n", name, labels, m.Value)
		}
	}
	return b.String()
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(`%s="%s"`, k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
