package service

import (
	"math"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"magic_bot/internal/modules/config"
	"magic_bot/pkg/logger"
)

// CalibrationModel — логистическая поправка sigmoid(a + b·logit(p)).
type CalibrationModel struct {
	Type string  `json:"type"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
}

// Calibration кэширует модель из файла. Перечитываем по интервалу или когда
// поменялся mtime; отсутствующий или битый файл — тождественное
// преобразование, без ошибок.
type Calibration struct {
	path     string
	interval time.Duration

	mu        sync.Mutex
	model     *CalibrationModel
	loadedAt  time.Time
	fileMtime time.Time
}

func NewCalibration(cfg *config.Config) *Calibration {
	return &Calibration{
		path:     cfg.CalibrationFile,
		interval: cfg.CalibrationReload,
	}
}

// Apply возвращает откалиброванную вероятность и флаг, была ли применена
// модель.
func (c *Calibration) Apply(p float64) (float64, bool) {
	m := c.current()
	if m == nil {
		return p, false
	}
	// логит не определён на границах
	eps := 1e-9
	if p < eps {
		p = eps
	}
	if p > 1-eps {
		p = 1 - eps
	}
	logit := math.Log(p / (1 - p))
	z := m.A + m.B*logit
	return 1 / (1 + math.Exp(-z)), true
}

func (c *Calibration) current() *CalibrationModel {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	stale := now.Sub(c.loadedAt) >= c.interval
	if !stale {
		if st, err := os.Stat(c.path); err == nil && !st.ModTime().Equal(c.fileMtime) {
			stale = true
		}
	}
	if stale {
		c.reloadLocked(now)
	}
	return c.model
}

func (c *Calibration) reloadLocked(now time.Time) {
	c.loadedAt = now

	st, err := os.Stat(c.path)
	if err != nil {
		c.model = nil
		return
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		c.model = nil
		return
	}
	var m CalibrationModel
	if err := sonic.Unmarshal(raw, &m); err != nil || m.Type != "logistic" {
		logger.Warn("calibration_file_invalid path=%s err=%v", c.path, err)
		c.model = nil
		return
	}
	c.model = &m
	c.fileMtime = st.ModTime()
}
