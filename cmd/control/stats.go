package main

import (
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/dyluth/raid/internal/supervisor"
)

// renderStatsTable prints the current sub-agent worker population in the
// same tabular style as renderProfilesTable (spec.md §4.3's stats()
// snapshot, rendered for a human instead of the reasoning loop).
func renderStatsTable(out *os.File, workers []supervisor.WorkerRecord) {
	table := tablewriter.NewWriter(out)
	table.Header("Worker", "Profile", "State", "Created")

	for _, w := range workers {
		table.Append(w.Name, w.ProfileName, string(w.State), w.CreatedAt.Format("15:04:05"))
	}
	table.Render()
}
