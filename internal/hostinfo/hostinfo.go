// Package hostinfo предоставляет чтение показателей хоста (CPU и память)
// для самонаблюдения движка и агента.
package hostinfo

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Provider определяет интерфейс поставщика показателей хоста.
// Позволяет подменять реальные чтения в тестах.
type Provider interface {
	// CPUPercent возвращает текущую загрузку CPU в процентах.
	CPUPercent() (float64, error)

	// MemoryUsedMB возвращает объём используемой памяти в мегабайтах.
	MemoryUsedMB() (float64, error)
}

// PSUtil читает показатели хоста через gopsutil.
// Реализует интерфейс Provider.
type PSUtil struct{}

// NewPSUtil создаёт поставщика показателей хоста.
func NewPSUtil() *PSUtil {
	return &PSUtil{}
}

// CPUPercent возвращает суммарную загрузку CPU с момента предыдущего вызова.
func (p *PSUtil) CPUPercent() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, fmt.Errorf("read cpu usage: %w", err)
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("read cpu usage: empty result")
	}
	return percents[0], nil
}

// MemoryUsedMB возвращает объём используемой виртуальной памяти в мегабайтах.
func (p *PSUtil) MemoryUsedMB() (float64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("read memory usage: %w", err)
	}
	return float64(stat.Used) / 1024 / 1024, nil
}
