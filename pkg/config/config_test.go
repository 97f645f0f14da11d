package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

func TestSampleIsValid(t *testing.T) {
	f, err := NewLoader().Parse(Sample(), "sample.yaml", nil)
	if err != nil {
		t.Fatalf("Parse(sample) error = %v", err)
	}

	cfg, err := f.ToEngineConfig()
	if err != nil {
		t.Fatalf("ToEngineConfig() error = %v", err)
	}
	if cfg.StartYear != 2025 || cfg.EndYear != 2029 || len(cfg.Levels) != 3 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.MeritDate.String() != "07-15" || !cfg.PromotionDate.Before(cfg.MeritDate) {
		t.Errorf("dates = %s, %s", cfg.PromotionDate, cfg.MeritDate)
	}
	if !cfg.Enrollment.Escalation.HireDateCutoff.Equal(engine.Date(2010, 1, 1)) {
		t.Errorf("hire date cutoff = %s", cfg.Enrollment.Escalation.HireDateCutoff)
	}
	if cfg.TerminationTenureMultipliers["<2"] != 1.5 {
		t.Errorf("multipliers = %v", cfg.TerminationTenureMultipliers)
	}
	if f.Census.SyntheticSize != 1000 || f.Storage.Driver != "sqlite" {
		t.Errorf("census %+v storage %+v", f.Census, f.Storage)
	}
}

func TestParseRejectsInvalidFiles(t *testing.T) {
	base := string(Sample())
	tests := []struct {
		name    string
		old     string
		new     string
		wantErr string
	}{
		{name: "unknown key", old: "simulation:\n", new: "bogus: 1\nsimulation:\n", wantErr: "bogus"},
		{name: "year range", old: "end_year: 2029", new: "end_year: 2020", wantErr: "simulation.end_year"},
		{name: "termination rate", old: "total_termination_rate: 0.12", new: "total_termination_rate: 1.0", wantErr: "workforce.total_termination_rate"},
		{name: "month day", old: `merit_date: "07-15"`, new: `merit_date: "7/15"`, wantErr: "not an MM-DD date"},
		{name: "merit before promotion", old: `merit_date: "07-15"`, new: `merit_date: "01-15"`, wantErr: "merit_date"},
		{name: "escalation cap", old: "cap: 0.10", new: "cap: 0.05", wantErr: "cap"},
		{name: "postgres without dsn", old: "driver: sqlite", new: "driver: postgres", wantErr: "storage.dsn"},
		{name: "tenure band", old: `"20+": 0.5`, new: `"30+": 0.5`, wantErr: "not a tenure band"},
		{name: "no census", old: "synthetic_size: 1000", new: "synthetic_size: 0", wantErr: "census.path"},
		{name: "wrong type", old: "random_seed: 42", new: "random_seed: forty", wantErr: "forty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(base, tt.old) {
				t.Fatalf("sample does not contain %q", tt.old)
			}
			data := strings.Replace(base, tt.old, tt.new, 1)

			_, err := NewLoader().Parse([]byte(data), "test.yaml", nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
			if !errors.Is(err, engine.ErrConfiguration) {
				t.Errorf("error is not a configuration error: %v", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) || len(verrs) == 0 {
				t.Errorf("error does not carry ValidationErrors: %v", err)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := NewLoader().Parse(nil, "empty.yaml", nil); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("Parse(nil) error = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WFSIM_STORE_DRIVER", "postgres")
	t.Setenv("WFSIM_STORE_DSN", "postgres://wfsim@localhost/wfsim")
	t.Setenv("WFSIM_THREADS", "8")
	t.Setenv("WFSIM_FAIL_FAST", "true")
	// Registered for restore, then cleared so the dotenv file supplies it.
	t.Setenv("WFSIM_RANDOM_SEED", "")
	os.Unsetenv("WFSIM_RANDOM_SEED")

	dotenv := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(dotenv, []byte("WFSIM_RANDOM_SEED=7\nWFSIM_THREADS=2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	e, err := LoadEnv(dotenv, filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if e.Threads != 8 {
		t.Errorf("threads = %d, want the process value 8", e.Threads)
	}
	if e.RandomSeed == nil || *e.RandomSeed != 7 {
		t.Errorf("random seed = %v, want 7 from .env", e.RandomSeed)
	}

	f, err := NewLoader().Parse(Sample(), "sample.yaml", e)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Storage.Driver != "postgres" || f.Storage.DSN != "postgres://wfsim@localhost/wfsim" {
		t.Errorf("storage = %+v", f.Storage)
	}
	if !f.Simulation.FailFast || f.Simulation.RandomSeed != 7 || f.Workers() != 8 {
		t.Errorf("simulation = %+v workers = %d", f.Simulation, f.Workers())
	}
}

func TestWorkersAndBatchSize(t *testing.T) {
	f := Default()
	f.Runtime.OptimizationLevel = "low"
	if f.Workers() != 1 || f.BatchSize() != 25 {
		t.Errorf("low: workers %d batch %d", f.Workers(), f.BatchSize())
	}
	f.Runtime.OptimizationLevel = "high"
	if f.Workers() < 1 || f.BatchSize() != 200 {
		t.Errorf("high: workers %d batch %d", f.Workers(), f.BatchSize())
	}
	f.Runtime.Threads = 3
	f.Storage.BatchSize = 10
	if f.Workers() != 3 || f.BatchSize() != 10 {
		t.Errorf("explicit: workers %d batch %d", f.Workers(), f.BatchSize())
	}
}

func TestDigest(t *testing.T) {
	l := NewLoader()
	a, _ := l.Parse(Sample(), "a.yaml", nil)
	b, _ := l.Parse(Sample(), "b.yaml", nil)
	if a.Digest() != b.Digest() || len(a.Digest()) != 16 {
		t.Fatalf("digests %s and %s", a.Digest(), b.Digest())
	}

	b.Runtime.Threads = 12
	b.Storage.Path = "elsewhere.db"
	if a.Digest() != b.Digest() {
		t.Error("runtime settings changed the digest")
	}
	b.Simulation.RandomSeed++
	if a.Digest() == b.Digest() {
		t.Error("seed change kept the digest")
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wfsim.yaml")
	if err := os.WriteFile(path, Sample(), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	if err := Watch(ctx, path, 10*time.Millisecond, zerolog.Nop(), func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Unrelated files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(Sample(), '\n'), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
