/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package main

import (
	"github.com/spf13/cobra"

	"corevm/classloader"
	"corevm/gc"
	"corevm/gcmon"
)

const gcMonAllocsPerTick = 64

var gcMonCmd = &cobra.Command{
	Use:   "gcmon",
	Short: "Launch the live GC/heap diagnostics TUI against a synthetic allocation workload",
	RunE:  runGCMon,
}

func runGCMon(cmd *cobra.Command, args []string) error {
	leafClass := &classloader.ClassObject{Kind: classloader.KindClass, Name: "sim/Leaf"}
	heap := gc.NewHeap(int(cfg.HeapSize), gc.NewFrameStack(), nil)

	driver := func() {
		for i := 0; i < gcMonAllocsPerTick; i++ {
			if _, err := heap.Allocate(leafClass, 0); err != nil {
				return
			}
		}
	}

	return gcmon.RunWithDriver(heap, driver)
}
