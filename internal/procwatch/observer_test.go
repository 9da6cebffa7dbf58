package procwatch

import (
	"context"
	"errors"
	"testing"

	"governor/internal/config"
	"governor/internal/logging"
	"governor/internal/posture"
)

func staticLister(procs []ProcessInfo, err error) ListFunc {
	return func(context.Context) ([]ProcessInfo, error) {
		return procs, err
	}
}

func testDetect() config.Detect {
	return config.Detect{
		Game: config.ProcessFilter{Names: []string{"witcher3.exe"}},
		Training: config.ProcessFilter{
			Names:   []string{"python", "python.exe"},
			Markers: []string{"train.py"},
		},
	}
}

func TestObserveClassifiesSignals(t *testing.T) {
	cases := []struct {
		name  string
		procs []ProcessInfo
		want  posture.Signals
	}{
		{
			name:  "nothing running",
			procs: nil,
			want:  posture.Signals{},
		},
		{
			name:  "game only",
			procs: []ProcessInfo{{Name: "Witcher3.exe", Cmdline: "witcher3.exe"}},
			want:  posture.Signals{Game: true},
		},
		{
			name:  "training with marker",
			procs: []ProcessInfo{{Name: "python", Cmdline: "python train.py --epochs 3"}},
			want:  posture.Signals{Training: true},
		},
		{
			name:  "python without marker is not training",
			procs: []ProcessInfo{{Name: "python", Cmdline: "python -m http.server"}},
			want:  posture.Signals{},
		},
		{
			name: "both signals",
			procs: []ProcessInfo{
				{Name: "witcher3.exe"},
				{Name: "python.exe", Cmdline: "python.exe train.py"},
			},
			want: posture.Signals{Game: true, Training: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			observer := NewObserver(testDetect(), logging.NewNop()).WithLister(staticLister(tc.procs, nil))
			got, err := observer.Observe(context.Background())
			if err != nil {
				t.Fatalf("observe: %v", err)
			}
			if got != tc.want {
				t.Fatalf("signals = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestObserveReturnsCachedSignalsOnError(t *testing.T) {
	observer := NewObserver(testDetect(), logging.NewNop())

	observer.WithLister(staticLister([]ProcessInfo{{Name: "witcher3.exe"}}, nil))
	if _, err := observer.Observe(context.Background()); err != nil {
		t.Fatalf("observe: %v", err)
	}

	enumErr := errors.New("ps unavailable")
	observer.WithLister(staticLister(nil, enumErr))
	got, err := observer.Observe(context.Background())
	if !errors.Is(err, enumErr) {
		t.Fatalf("expected enumeration error, got %v", err)
	}
	if !got.Game {
		t.Fatalf("expected cached game signal to survive enumeration failure")
	}
}

func TestMatchesIgnoresCase(t *testing.T) {
	filter := config.ProcessFilter{Names: []string{"EldenRing.exe"}}
	if !Matches(filter, ProcessInfo{Name: "eldenring.exe"}) {
		t.Fatalf("expected case-insensitive name match")
	}
}
