package config

const (
	defaultControlDir     = "~/training/control"
	defaultLogDir         = "~/.local/share/governor/logs"
	defaultTelemetryPath  = "~/.local/share/governor/telemetry.csv"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultPollInterval   = 10
	defaultMinSamples     = 3
	defaultCommandTimeout = 8
	defaultSampleEvery    = 6
)

// Default returns a Config populated with repository defaults. The default
// tool argv targets a Windows host (powercfg / nvidia-smi) because that is
// where the cooperating training process runs; every entry is overridable.
func Default() Config {
	return Config{
		Workflow: Workflow{
			PollInterval:   defaultPollInterval,
			MinSamples:     defaultMinSamples,
			CommandTimeout: defaultCommandTimeout,
		},
		Paths: Paths{
			ControlDir: defaultControlDir,
			LogDir:     defaultLogDir,
		},
		Detect: Detect{
			Training: ProcessFilter{
				Names:   []string{"python", "python.exe"},
				Markers: []string{"train"},
			},
		},
		Tools: Tools{
			PowerPlan:      []string{"powercfg", "/setactive"},
			PowerPlanQuery: []string{"powercfg", "/getactivescheme"},
			GPU:            []string{"nvidia-smi"},
		},
		Profiles: map[string]Profile{
			"gaming": {
				FanProfile: "performance",
				PowerPlan:  "8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c",
			},
			"training": {
				FanProfile:    "training",
				PowerPlan:     "381b4222-f694-41f0-9685-ff5bb260df2e",
				GPUPowerWatts: 260,
			},
			"idle": {
				FanProfile: "quiet",
				PowerPlan:  "a1841308-3541-4fab-bc81-f71556f20b4a",
			},
		},
		Telemetry: Telemetry{
			SampleEvery: defaultSampleEvery,
			Path:        defaultTelemetryPath,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
