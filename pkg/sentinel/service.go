package sentinel

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"onebridge/pkg/config"
	"onebridge/pkg/lifecycle"
	"onebridge/pkg/logger"
)

type AlertFunc func(msg string)

// ProbeFunc checks one dependency (e.g. the OneBot gateway) and returns an
// error when it is unhealthy.
type ProbeFunc func() error

// HealFunc attempts recovery after a failed probe (e.g. restart a channel).
type HealFunc func() error

// Service periodically validates the installation: config parses and
// validates, session and log directories exist, and the gateway answers its
// probe. With auto-heal on, fixable issues are repaired in place.
type Service struct {
	cfgPath    string
	interval   time.Duration
	autoHeal   bool
	onAlert    AlertFunc
	probe      ProbeFunc
	heal       HealFunc
	runner     *lifecycle.LoopRunner
	mu         sync.RWMutex
	lastAlerts map[string]time.Time
}

func NewService(cfgPath string, intervalSec int, autoHeal bool, onAlert AlertFunc) *Service {
	if intervalSec <= 0 {
		intervalSec = 60
	}
	return &Service{
		cfgPath:    cfgPath,
		interval:   time.Duration(intervalSec) * time.Second,
		autoHeal:   autoHeal,
		onAlert:    onAlert,
		runner:     lifecycle.NewLoopRunner(),
		lastAlerts: map[string]time.Time{},
	}
}

// SetProbe wires the gateway health probe and its recovery hook.
func (s *Service) SetProbe(probe ProbeFunc, heal HealFunc) {
	s.mu.Lock()
	s.probe = probe
	s.heal = heal
	s.mu.Unlock()
}

func (s *Service) Start() {
	if !s.runner.Start(s.loop) {
		return
	}
	logger.InfoCF("sentinel", "Sentinel started", map[string]interface{}{
		"interval":  s.interval.String(),
		"auto_heal": s.autoHeal,
	})
}

func (s *Service) Stop() {
	if !s.runner.Stop() {
		return
	}
	logger.InfoC("sentinel", "Sentinel stopped")
}

func (s *Service) loop(stopCh <-chan struct{}) {
	tk := time.NewTicker(s.interval)
	defer tk.Stop()

	s.runChecks()
	for {
		select {
		case <-stopCh:
			return
		case <-tk.C:
			s.runChecks()
		}
	}
}

func (s *Service) runChecks() {
	issues := s.checkConfig()
	issues = append(issues, s.checkDirs()...)
	issues = append(issues, s.checkGateway()...)

	if len(issues) == 0 {
		return
	}

	for _, issue := range issues {
		s.alert(issue)
	}
}

func (s *Service) checkConfig() []string {
	_, err := os.Stat(s.cfgPath)
	if err != nil {
		return []string{fmt.Sprintf("sentinel: config file missing: %s", s.cfgPath)}
	}

	cfg, err := config.LoadConfig(s.cfgPath)
	if err != nil {
		return []string{fmt.Sprintf("sentinel: config parse failed: %v", err)}
	}

	verrs := config.Validate(cfg)
	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, fmt.Sprintf("sentinel: config validation issue: %v", e))
	}
	return out
}

func (s *Service) checkDirs() []string {
	cfg, err := config.LoadConfig(s.cfgPath)
	if err != nil {
		return nil
	}

	var issues []string
	if dir := cfg.SessionDir(); dir != "" {
		issues = append(issues, s.checkDir("session dir", dir)...)
	}
	if cfg.Logging.Enabled {
		logDir := filepath.Clean(filepath.Dir(cfg.LogFilePath()))
		issues = append(issues, s.checkDir("log dir", logDir)...)
	}
	return issues
}

func (s *Service) checkDir(label, dir string) []string {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if s.autoHeal {
		if mkErr := os.MkdirAll(dir, 0755); mkErr == nil {
			return []string{fmt.Sprintf("sentinel: %s missing, auto-healed", label)}
		}
	}
	return []string{fmt.Sprintf("sentinel: %s missing: %s", label, dir)}
}

func (s *Service) checkGateway() []string {
	s.mu.RLock()
	probe, heal := s.probe, s.heal
	s.mu.RUnlock()

	if probe == nil {
		return nil
	}
	err := probe()
	if err == nil {
		return nil
	}
	if s.autoHeal && heal != nil {
		if healErr := heal(); healErr == nil {
			return []string{"sentinel: gateway probe failed, channel restarted"}
		}
	}
	return []string{fmt.Sprintf("sentinel: gateway probe failed: %v", err)}
}

func (s *Service) alert(msg string) {
	now := time.Now()
	s.mu.Lock()
	last, ok := s.lastAlerts[msg]
	if ok && now.Sub(last) < 5*time.Minute {
		s.mu.Unlock()
		return
	}
	s.lastAlerts[msg] = now
	s.mu.Unlock()

	logger.WarnCF("sentinel", msg, nil)
	if s.onAlert != nil {
		s.onAlert(msg)
	}
}
