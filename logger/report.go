package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type sourceStat struct {
	requests int64
	bytes    int64
}

var (
	errorsVolume  int64
	errorsDepth   int64
	warnsVolume   int64
	warnsDepth    int64
	volumeReads   int64
	depthReads    int64
	logAppends    int64
	mirrorUploads int64
	sources       sync.Map // map[string]*sourceStat
)

func recordWarn(component string) {
	if strings.Contains(component, "depth") {
		atomic.AddInt64(&warnsDepth, 1)
	} else if strings.Contains(component, "volume") || strings.Contains(component, "reader") {
		atomic.AddInt64(&warnsVolume, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "depth") {
		atomic.AddInt64(&errorsDepth, 1)
	} else if strings.Contains(component, "volume") || strings.Contains(component, "reader") {
		atomic.AddInt64(&errorsVolume, 1)
	}
}

// IncrementVolumeRead records one successful per-exchange volume fetch.
func IncrementVolumeRead(size int) {
	atomic.AddInt64(&volumeReads, 1)
	recordSource("volume_rest", size)
}

// IncrementDepthRead records one successful orderbook fetch.
func IncrementDepthRead(size int) {
	atomic.AddInt64(&depthReads, 1)
	recordSource("depth_rest", size)
}

// IncrementLogAppend records one history log append.
func IncrementLogAppend(size int) {
	atomic.AddInt64(&logAppends, 1)
	recordSource("history_log", size)
}

// IncrementMirrorUpload records one S3 mirror upload of the history log.
func IncrementMirrorUpload(size int64) {
	atomic.AddInt64(&mirrorUploads, 1)
	recordSource("s3_mirror", int(size))
}

func recordSource(name string, size int) {
	v, _ := sources.LoadOrStore(name, &sourceStat{})
	ss := v.(*sourceStat)
	atomic.AddInt64(&ss.requests, 1)
	atomic.AddInt64(&ss.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and source statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	sourceData := map[string]map[string]int64{}
	sources.Range(func(k, v any) bool {
		name := k.(string)
		ss := v.(*sourceStat)
		sourceData[name] = map[string]int64{
			"requests": atomic.LoadInt64(&ss.requests),
			"bytes":    atomic.LoadInt64(&ss.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_volume":  atomic.LoadInt64(&errorsVolume),
		"errors_depth":   atomic.LoadInt64(&errorsDepth),
		"warns_volume":   atomic.LoadInt64(&warnsVolume),
		"warns_depth":    atomic.LoadInt64(&warnsDepth),
		"volume_reads":   atomic.LoadInt64(&volumeReads),
		"depth_reads":    atomic.LoadInt64(&depthReads),
		"log_appends":    atomic.LoadInt64(&logAppends),
		"mirror_uploads": atomic.LoadInt64(&mirrorUploads),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      int64(memStats.Used) / 1024 / 1024,
		"disk_mb":        int64(diskStats.Used) / 1024 / 1024,
		"sources":        sourceData,
		"net_bytes_sent": int64(bytesSent),
		"net_bytes_recv": int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsVolume"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsVolume)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsDepth"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsDepth)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsVolume"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&warnsVolume)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsDepth"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&warnsDepth)))},
		cwtypes.MetricDatum{MetricName: aws.String("VolumeFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&volumeReads)))},
		cwtypes.MetricDatum{MetricName: aws.String("DepthFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&depthReads)))},
		cwtypes.MetricDatum{MetricName: aws.String("LogAppends"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&logAppends)))},
		cwtypes.MetricDatum{MetricName: aws.String("MirrorUploads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&mirrorUploads)))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range sourceData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("SourceRequests"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Source"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["requests"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("SourceBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Source"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
