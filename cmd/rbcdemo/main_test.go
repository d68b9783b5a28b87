package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

func TestRun(t *testing.T) {
	pterm.DisableOutput()
	t.Cleanup(pterm.EnableOutput)
	tests := []struct {
		name    string
		cfg     config
		wantErr bool
	}{
		{name: "AllHonest", cfg: config{nodes: 4}},
		{name: "OneFaulty", cfg: config{nodes: 4, faulty: 1}},
		{name: "OneCrashed", cfg: config{nodes: 4, crashed: 1}},
		{name: "TooManyFaulty", cfg: config{nodes: 2, faulty: 3}, wantErr: true},
		{name: "NoNodes", cfg: config{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
			defer cancel()
			tt.cfg.payload = []byte("test payload")
			tt.cfg.rpcTimeout = 200 * time.Millisecond
			err := run(ctx, slog.New(slog.DiscardHandler), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("run() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestStartStepWithoutOutput(t *testing.T) {
	pterm.DisableOutput()
	t.Cleanup(pterm.EnableOutput)
	s := startStep("quiet")
	if _, ok := s.(quietStep); !ok {
		t.Errorf("startStep() = %T, want quietStep when output is disabled", s)
	}
	s.Success("done")
}
