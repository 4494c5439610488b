package logger

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

type adapterStat struct {
	events         int64
	dropped        int64
	reconnects     int64
	responseErrors int64
}

var (
	warns    sync.Map // map[string]*int64
	errs     sync.Map // map[string]*int64
	channels sync.Map // map[string]*channelStat
	adapters sync.Map // map[string]*adapterStat
)

func counter(m *sync.Map, key string) *int64 {
	v, _ := m.LoadOrStore(key, new(int64))
	return v.(*int64)
}

func recordWarn(component string) {
	atomic.AddInt64(counter(&warns, component), 1)
}

func recordError(component string) {
	atomic.AddInt64(counter(&errs, component), 1)
}

func adapter(exchange string) *adapterStat {
	v, _ := adapters.LoadOrStore(exchange, &adapterStat{})
	return v.(*adapterStat)
}

// RecordEvent counts an event handed to the consumer.
func RecordEvent(exchange string) {
	atomic.AddInt64(&adapter(exchange).events, 1)
}

// RecordDrop counts an inbound message that was discarded.
func RecordDrop(exchange string) {
	atomic.AddInt64(&adapter(exchange).dropped, 1)
}

func RecordReconnect(exchange string) {
	atomic.AddInt64(&adapter(exchange).reconnects, 1)
}

func RecordResponseError(exchange string) {
	atomic.AddInt64(&adapter(exchange).responseErrors, 1)
}

// RecordChannelMessage counts raw traffic on a named stream.
func RecordChannelMessage(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// AdapterCounters returns the current counters for one exchange.
func AdapterCounters(exchange string) map[string]int64 {
	st := adapter(exchange)
	return map[string]int64{
		"events":          atomic.LoadInt64(&st.events),
		"dropped":         atomic.LoadInt64(&st.dropped),
		"reconnects":      atomic.LoadInt64(&st.reconnects),
		"response_errors": atomic.LoadInt64(&st.responseErrors),
	}
}

func snapshotCounters(m *sync.Map) map[string]int64 {
	out := map[string]int64{}
	m.Range(func(k, v any) bool {
		out[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return out
}

// StartReport begins periodic logging of system, adapter and channel statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	netStats, _ := gnet.IOCounters(false)

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		cs := v.(*channelStat)
		channelData[k.(string)] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	adapterData := map[string]map[string]int64{}
	adapters.Range(func(k, _ any) bool {
		adapterData[k.(string)] = AdapterCounters(k.(string))
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	memoryMB := 0.0
	if memStats != nil {
		memoryMB = float64(memStats.Used) / 1024 / 1024
	}
	var bytesSent, bytesRecv uint64
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	log.WithComponent("report").WithFields(Fields{
		"warns":          snapshotCounters(&warns),
		"errors":         snapshotCounters(&errs),
		"adapters":       adapterData,
		"channels":       channelData,
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      int64(memoryMB),
		"net_bytes_sent": int64(bytesSent),
		"net_bytes_recv": int64(bytesRecv),
	}).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memoryMB)},
	}

	names := make([]string, 0, len(adapterData))
	for name := range adapterData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dims := []cwtypes.Dimension{{Name: aws.String("Exchange"), Value: aws.String(name)}}
		stats := adapterData[name]
		data = append(data,
			cwtypes.MetricDatum{MetricName: aws.String("EventsDispatched"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(stats["events"]))},
			cwtypes.MetricDatum{MetricName: aws.String("MessagesDropped"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(stats["dropped"]))},
			cwtypes.MetricDatum{MetricName: aws.String("Reconnects"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(stats["reconnects"]))},
			cwtypes.MetricDatum{MetricName: aws.String("ResponseErrors"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(stats["response_errors"]))},
		)
	}

	publishMetrics(ctx, data)
}
