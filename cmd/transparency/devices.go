package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Arnold-Curtis/AudioGlass/internal/hostaudio"
	malgosvc "github.com/Arnold-Curtis/AudioGlass/internal/hostaudio/malgo"
)

func devicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect host audio devices",
	}
	cmd.AddCommand(devicesListCommand())
	return cmd
}

func devicesListCommand() *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List capture and/or playback devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := malgosvc.New()
			if err != nil {
				return fmt.Errorf("failed to initialize host audio service: %w", err)
			}
			defer svc.Close()

			switch direction {
			case "capture":
				return printDevices(svc, hostaudio.DirectionCapture)
			case "playback":
				return printDevices(svc, hostaudio.DirectionPlayback)
			case "both", "":
				if err := printDevices(svc, hostaudio.DirectionCapture); err != nil {
					return err
				}
				return printDevices(svc, hostaudio.DirectionPlayback)
			default:
				return fmt.Errorf("unknown --direction %q, want capture, playback, or both", direction)
			}
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "both", "Which devices to list: capture, playback, or both")
	return cmd
}

func printDevices(svc hostaudio.Service, direction hostaudio.Direction) error {
	devices, err := svc.ListDevices(direction)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s devices: %w", directionLabel(direction), err)
	}

	fmt.Printf("%s devices:\n", directionLabel(direction))
	if len(devices) == 0 {
		fmt.Println("  (none found)")
		return nil
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s %-36s %s\n", marker, d.ID, d.Name)
	}
	return nil
}

func directionLabel(direction hostaudio.Direction) string {
	if direction == hostaudio.DirectionCapture {
		return "Capture"
	}
	return "Playback"
}
