// cmd/coordinator/dump.go
package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tamzrod/spectro-coordinator/internal/coordinator"
	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
)

func dumpCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Log settings, EEPROM fields and raw EEPROM pages of every spectrometer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				c.MetadataDump()
				return nil
			})
		},
	}
}

func eepromCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "eeprom <device> <page>",
		Short: "Print one raw 64-byte EEPROM page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("device index: %w", err)
			}
			page, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("page: %w", err)
			}

			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				buf, err := c.EEPROMPage(dev, page)
				if err != nil {
					return err
				}
				for _, line := range eventlog.HexdumpLines(buf) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}

// withCoordinator opens every device, runs fn and closes the driver.
func (a *app) withCoordinator(fn func(c *coordinator.Coordinator) error) error {
	rt, err := a.setup()
	if err != nil {
		return err
	}
	defer rt.close()

	c, err := coordinator.New(rt.gw, rt.log, a.cfg)
	if err != nil {
		return err
	}
	if _, err := c.Open(); err != nil {
		_ = shutdown(c)
		return err
	}

	ferr := fn(c)
	if err := shutdown(c); err != nil {
		rt.log.Errorf("close all spectrometers: %v", err)
	}
	return ferr
}
