// Package store собирает показатели процесса и хоста для агента телеметрии.
package store

import (
	"log"
	"runtime"

	"github.com/levinOo/go-telemetry-project/internal/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type Gauge float64

// Snapshot содержит последний собранный набор показателей процесса и хоста.
// Показатели процесса берутся из runtime.MemStats, показатели хоста через gopsutil.
type Snapshot struct {
	Alloc         Gauge
	BuckHashSys   Gauge
	Frees         Gauge
	GCCPUFraction Gauge
	GCSys         Gauge
	HeapAlloc     Gauge
	HeapIdle      Gauge
	HeapInuse     Gauge
	HeapObjects   Gauge
	HeapReleased  Gauge
	HeapSys       Gauge
	Mallocs       Gauge
	NextGC        Gauge
	NumGC         Gauge
	PauseTotalNs  Gauge
	StackInuse    Gauge
	StackSys      Gauge
	Sys           Gauge
	TotalAlloc    Gauge

	TotalMemoryMB  Gauge
	FreeMemoryMB   Gauge
	CPUUtilization Gauge

	PollCount Gauge
}

// NewSnapshot создает пустой снимок показателей.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Collect обновляет показатели процесса из runtime.MemStats
// и увеличивает счетчик опросов.
func (s *Snapshot) Collect() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	s.Alloc = Gauge(stats.Alloc)
	s.BuckHashSys = Gauge(stats.BuckHashSys)
	s.Frees = Gauge(stats.Frees)
	s.GCCPUFraction = Gauge(stats.GCCPUFraction)
	s.GCSys = Gauge(stats.GCSys)
	s.HeapAlloc = Gauge(stats.HeapAlloc)
	s.HeapIdle = Gauge(stats.HeapIdle)
	s.HeapInuse = Gauge(stats.HeapInuse)
	s.HeapObjects = Gauge(stats.HeapObjects)
	s.HeapReleased = Gauge(stats.HeapReleased)
	s.HeapSys = Gauge(stats.HeapSys)
	s.Mallocs = Gauge(stats.Mallocs)
	s.NextGC = Gauge(stats.NextGC)
	s.NumGC = Gauge(stats.NumGC)
	s.PauseTotalNs = Gauge(stats.PauseTotalNs)
	s.StackInuse = Gauge(stats.StackInuse)
	s.StackSys = Gauge(stats.StackSys)
	s.Sys = Gauge(stats.Sys)
	s.TotalAlloc = Gauge(stats.TotalAlloc)
	s.PollCount++
}

// CollectHost обновляет показатели хоста: объем памяти и загрузку CPU.
// При ошибке чтения показатели хоста сохраняют предыдущее значение.
func (s *Snapshot) CollectHost() {
	memStat, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("Error collecting memory metrics: %v", err)
	} else {
		s.TotalMemoryMB = Gauge(memStat.Total / 1024 / 1024)
		s.FreeMemoryMB = Gauge(memStat.Available / 1024 / 1024)
	}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		log.Printf("Error collecting cpu metrics: %v", err)
	} else if len(percents) > 0 {
		s.CPUUtilization = Gauge(percents[0])
	}
}

// Values возвращает показатели снимка по именам метрик.
func (s *Snapshot) Values() map[string]Gauge {
	return map[string]Gauge{
		"agent_alloc_bytes":          s.Alloc,
		"agent_buck_hash_sys_bytes":  s.BuckHashSys,
		"agent_frees_total":          s.Frees,
		"agent_gc_cpu_fraction":      s.GCCPUFraction,
		"agent_gc_sys_bytes":         s.GCSys,
		"agent_heap_alloc_bytes":     s.HeapAlloc,
		"agent_heap_idle_bytes":      s.HeapIdle,
		"agent_heap_inuse_bytes":     s.HeapInuse,
		"agent_heap_objects":         s.HeapObjects,
		"agent_heap_released_bytes":  s.HeapReleased,
		"agent_heap_sys_bytes":       s.HeapSys,
		"agent_mallocs_total":        s.Mallocs,
		"agent_next_gc_bytes":        s.NextGC,
		"agent_num_gc":               s.NumGC,
		"agent_pause_total_ns":       s.PauseTotalNs,
		"agent_stack_inuse_bytes":    s.StackInuse,
		"agent_stack_sys_bytes":      s.StackSys,
		"agent_sys_bytes":            s.Sys,
		"agent_total_alloc_bytes":    s.TotalAlloc,
		"host_total_memory_mb":       s.TotalMemoryMB,
		"host_free_memory_mb":        s.FreeMemoryMB,
		"host_cpu_utilization":       s.CPUUtilization,
		"agent_poll_count":           s.PollCount,
	}
}

// Points преобразует снимок в пакет измерений для отправки на сервер.
// Каждое измерение получает указанный source.
func (s *Snapshot) Points(source string) []models.MetricPoint {
	values := s.Values()
	points := make([]models.MetricPoint, 0, len(values))

	for name, value := range values {
		points = append(points, models.MetricPoint{
			Name:   name,
			Value:  float64(value),
			Source: source,
		})
	}

	return points
}
