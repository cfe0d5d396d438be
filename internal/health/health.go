package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Probe проверяет доступность одной зависимости сервиса.
type Probe func() error

// ProbeResult результат одной проверки.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Report агрегированный отчёт по всем проверкам.
type Report struct {
	Status        string        `json:"status"`
	Version       string        `json:"version,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	CheckedAt     time.Time     `json:"checked_at"`
	Probes        []ProbeResult `json:"probes,omitempty"`
}

// Registry хранит именованные проверки и отдаёт агрегированный отчёт.
// Проверки выполняются в порядке регистрации.
type Registry struct {
	mu        sync.Mutex
	probes    []namedProbe
	version   string
	startedAt time.Time
}

type namedProbe struct {
	name string
	fn   Probe
}

// NewRegistry создаёт реестр проверок.
func NewRegistry(version string) *Registry {
	return &Registry{
		version:   version,
		startedAt: time.Now(),
	}
}

// Register добавляет проверку. Повторная регистрация под тем же
// именем заменяет предыдущую.
func (r *Registry) Register(name string, fn Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.probes {
		if p.name == name {
			r.probes[i].fn = fn
			return
		}
	}
	r.probes = append(r.probes, namedProbe{name: name, fn: fn})
}

// Run выполняет все проверки и собирает отчёт.
func (r *Registry) Run() Report {
	r.mu.Lock()
	probes := make([]namedProbe, len(r.probes))
	copy(probes, r.probes)
	r.mu.Unlock()

	report := Report{
		Status:        "ok",
		Version:       r.version,
		UptimeSeconds: int64(time.Since(r.startedAt).Seconds()),
		CheckedAt:     time.Now(),
	}

	for _, p := range probes {
		start := time.Now()
		err := p.fn()
		result := ProbeResult{
			Name:      p.name,
			OK:        err == nil,
			ElapsedMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			result.Error = err.Error()
			report.Status = "fail"
		}
		report.Probes = append(report.Probes, result)
	}

	return report
}

// ServeHTTP отдаёт полный отчёт. 503 если хотя бы одна проверка упала.
func (r *Registry) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	report := r.Run()

	code := http.StatusOK
	if report.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler короткий readiness probe без тела отчёта.
func (r *Registry) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if report := r.Run(); report.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
