package analytics

import "runtime"

type SystemInfo struct {
	CPUCount    int    `json:"cpu_count"`
	MemoryTotal uint64 `json:"memory_total"`
	GoVersion   string `json:"go_version"`
}

type RealTime struct {
	MemoryUsage       uint64 `json:"memory_usage"`
	Goroutines        int    `json:"goroutines"`
	ActiveGenerations int    `json:"active_generations"`
	QueueSize         int    `json:"queue_size"`
}

type Report struct {
	PerformanceMetrics Summary    `json:"performance_metrics"`
	SystemInfo         SystemInfo `json:"system_info"`
	RealTime           RealTime   `json:"real_time"`
}

// Counter reports jobs waiting for a slot and jobs currently running.
type Counter interface {
	Counts() (planning, running int)
}

// BuildReport combines ledger aggregates with process and job-store figures.
// Memory figures come from the Go runtime, not the host.
func BuildReport(summary Summary, jobs Counter) Report {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	rep := Report{
		PerformanceMetrics: summary,
		SystemInfo: SystemInfo{
			CPUCount:    runtime.NumCPU(),
			MemoryTotal: ms.Sys,
			GoVersion:   runtime.Version(),
		},
		RealTime: RealTime{
			MemoryUsage: ms.HeapAlloc,
			Goroutines:  runtime.NumGoroutine(),
		},
	}
	if jobs != nil {
		rep.RealTime.QueueSize, rep.RealTime.ActiveGenerations = jobs.Counts()
	}
	return rep
}
