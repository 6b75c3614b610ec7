package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dyluth/raid/internal/config"
	"github.com/dyluth/raid/internal/profile"
	"github.com/dyluth/raid/internal/tools"
)

func buildProfilesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List configured sub-agent profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProfiles(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "./raid.yml", "path to raid.yml")
	return cmd
}

func listProfiles(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}

	toolRegistry := tools.NewRegistry(
		tools.CalculatorTool{},
		tools.BashTool{},
		tools.ReadFileTool{Root: "."},
		tools.CreateFileTool{Root: "."},
		tools.ListFilesTool{Root: "."},
	)
	profiles := profile.NewRegistry(cfg.ProfilesDir, toolRegistry.KnownNames())
	if err := profiles.LoadAll(); err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}

	renderProfilesTable(os.Stdout, profiles.All())
	return nil
}

func renderProfilesTable(out *os.File, profiles map[string]*profile.Profile) {
	table := tablewriter.NewWriter(out)
	table.Header("Profile", "Provider/Model", "Tools", "Persistent")

	for _, name := range sortedKeys(profiles) {
		p := profiles[name]
		table.Append(
			p.Name,
			p.LLMConfig.Provider+"/"+p.LLMConfig.Model,
			strconv.Itoa(len(p.Tools)),
			strconv.FormatBool(p.Persistent()),
		)
	}
	table.Render()
}

func sortedKeys(m map[string]*profile.Profile) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
