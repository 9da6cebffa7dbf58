// Package telemetry appends periodic GPU samples to a CSV file.
//
// Sampling rides the orchestrator tick: every Nth tick the sampler queries the
// GPU tool and appends one row. A failed query still produces a row with empty
// measurement fields so gaps in the data are visible rather than silent.
package telemetry

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"governor/internal/actuator"
	"governor/internal/config"
	"governor/internal/logging"
	"governor/internal/posture"
)

var header = []string{"timestamp", "tick", "mode", "game_signal", "training_signal", "gpu_power_w", "gpu_temp_c", "gpu_util_pct"}

// Sampler periodically records GPU power, temperature, and utilization.
type Sampler struct {
	path   string
	every  int
	argv   []string
	logger *slog.Logger

	// query returns the raw tool output; swappable in tests.
	query func(ctx context.Context) (string, error)
	now   func() time.Time
}

// NewSampler builds a sampler from the telemetry config. The GPU query reuses
// the configured GPU tool argv.
func NewSampler(cfg *config.Config, runner *actuator.Runner, logger *slog.Logger) *Sampler {
	argv := append(append([]string{}, cfg.Tools.GPU...),
		"--query-gpu=power.draw,temperature.gpu,utilization.gpu",
		"--format=csv,noheader,nounits")
	s := &Sampler{
		path:   cfg.Telemetry.Path,
		every:  cfg.Telemetry.SampleEvery,
		argv:   argv,
		logger: logging.NewComponentLogger(logger, "telemetry"),
		now:    time.Now,
	}
	s.query = func(ctx context.Context) (string, error) {
		out, err := runner.Output(ctx, s.argv...)
		return string(out), err
	}
	return s
}

// Sample appends one CSV row when the tick is due.
func (s *Sampler) Sample(ctx context.Context, tick uint64, mode posture.Mode, signals posture.Signals) {
	if s.every < 1 || tick%uint64(s.every) != 0 {
		return
	}

	power, temp, util := "", "", ""
	if out, err := s.query(ctx); err != nil {
		s.logger.Warn("gpu query failed, recording empty sample", logging.Error(err))
	} else {
		power, temp, util = parseQueryOutput(out)
	}

	row := []string{
		s.now().UTC().Format(time.RFC3339),
		strconv.FormatUint(tick, 10),
		string(mode),
		strconv.FormatBool(signals.Game),
		strconv.FormatBool(signals.Training),
		power,
		temp,
		util,
	}
	if err := s.append(row); err != nil {
		s.logger.Warn("telemetry row not written", logging.Error(err))
	}
}

// parseQueryOutput splits the tool's "power, temp, util" line into fields.
// Short or malformed output yields empty fields rather than an error.
func parseQueryOutput(out string) (power, temp, util string) {
	fields := strings.Split(strings.TrimSpace(out), ",")
	get := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}
	return get(0), get(1), get(2)
}

func (s *Sampler) append(row []string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writer.Write(row); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
