package main

import (
	"testing"

	"takevault/internal/testsupport"
)

func TestNewLogger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	logger, err := newLogger(cfg)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("startup probe")
}

func TestBuildWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	w, err := buildWorker(cfg, store, nil)
	if err != nil {
		t.Fatalf("buildWorker: %v", err)
	}
	if w.Running() {
		t.Fatal("worker should not start on construction")
	}
}
