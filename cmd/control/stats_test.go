package main

import (
	"os"
	"testing"
	"time"

	"github.com/dyluth/raid/internal/supervisor"
)

func TestRenderStatsTable_NoPanicOnEmptyPopulation(t *testing.T) {
	renderStatsTable(os.Stdout, nil)
}

func TestRenderStatsTable_RendersEveryWorker(t *testing.T) {
	workers := []supervisor.WorkerRecord{
		{Name: "w1", ProfileName: "calculator_agent", State: supervisor.StateRunning, CreatedAt: time.Now()},
		{Name: "w2", ProfileName: "code_writer", State: supervisor.StateIdle, CreatedAt: time.Now()},
	}
	renderStatsTable(os.Stdout, workers)
}
