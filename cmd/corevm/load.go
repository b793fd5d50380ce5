/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"corevm/classloader"
	"corevm/descriptor"
	"corevm/trace"
)

var loadCmd = &cobra.Command{
	Use:   "load <classfile>",
	Short: "Load a .class file and print the resulting class-object layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	_, span := trace.StartSpan(cmd.Context(), "load")
	defer span.End()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read class file: %w", err)
	}

	loader := classloader.NewLoader()
	if len(cfg.Classpath) > 0 {
		loader.AddClasspath(cfg.Classpath...)
	}

	co, err := loader.Add(raw)
	if err != nil {
		return fmt.Errorf("load class: %w", err)
	}

	printClassObject(co)
	return nil
}

func printClassObject(co *classloader.ClassObject) {
	fmt.Printf("class %s (kind=%s)\n", co.Name, co.Kind)
	fmt.Printf("  instance size: %d bytes (field area: %d bytes)\n", co.InstanceSize, co.FieldAreaSize)
	fmt.Printf("  gc mask: %v\n", co.GCMask)
	fmt.Println("  fields:")
	for _, f := range co.Fields {
		if f.Static {
			fmt.Printf("    static %s %s\n", f.Name, descriptor.Write(f.Type))
			continue
		}
		fmt.Printf("    %s %s @%d\n", f.Name, descriptor.Write(f.Type), f.Offset)
	}
	fmt.Println("  methods:")
	for _, m := range co.Methods {
		fmt.Printf("    %s%s\n", m.Name, descriptor.WriteMethod(m.Desc))
	}
}
