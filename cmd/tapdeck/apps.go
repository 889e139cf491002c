package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List applications currently producing audio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr := newManager(cfg, newLogger(cfg))

		apps, err := mgr.ListAudioProcesses(cmd.Context())
		if err != nil {
			return err
		}
		if len(apps) == 0 {
			fmt.Println("no audio processes found")
			return nil
		}
		for _, app := range apps {
			if app.BundleID != "" {
				fmt.Printf("%8d  %-30s %s\n", app.PID, app.DisplayName, app.BundleID)
			} else {
				fmt.Printf("%8d  %s\n", app.PID, app.DisplayName)
			}
		}
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capturable audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr := newManager(cfg, newLogger(cfg))

		devices, err := mgr.ListDevices()
		if err != nil {
			return err
		}
		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			fmt.Printf("%s %-14s %s\n", marker, d.Type, d.Name)
		}
		return nil
	},
}
