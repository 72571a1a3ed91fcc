package main

import (
	"context"
	"errors"
	"testing"

	"jobboard/internal/alerts"
	"jobboard/internal/config"
)

func TestRunOnceManual(t *testing.T) {
	t.Parallel()

	stub := &stubScheduler{report: alerts.Report{Processed: 4, Sent: 3}}
	builds, cleanups := 0, 0

	report, err := runOnceManual(context.Background(), config.AppConfig{}, func(config.AppConfig) (appDeps, func(), error) {
		builds++
		return appDeps{sched: stub}, func() { cleanups++ }, nil
	})
	if err != nil {
		t.Fatalf("runOnceManual error: %v", err)
	}
	if report.Sent != 3 || report.Processed != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	if builds != 1 || cleanups != 1 {
		t.Fatalf("expected one build and one cleanup, got %d/%d", builds, cleanups)
	}
	if stub.runOnceCalls != 1 {
		t.Fatalf("expected RunOnce called once, got %d", stub.runOnceCalls)
	}
}

func TestRunOnceManualBuilderError(t *testing.T) {
	t.Parallel()

	_, err := runOnceManual(context.Background(), config.AppConfig{}, func(config.AppConfig) (appDeps, func(), error) {
		return appDeps{}, func() {}, errors.New("build fail")
	})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

// --- stubs ---

type stubScheduler struct {
	report       alerts.Report
	runOnceCalls int
}

func (s *stubScheduler) RunOnce(context.Context) (alerts.Report, error) {
	s.runOnceCalls++
	return s.report, nil
}

func (s *stubScheduler) Start(context.Context) error {
	return nil
}
