/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package trace

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartSpanExportsThroughTraceSink(t *testing.T) {
	EnableOtel()

	prevEnabled := Enabled
	Enabled = true
	defer func() { Enabled = prevEnabled }()

	var lines []string
	prevSink := SetSink(func(level Level, msg string) { lines = append(lines, msg) })
	defer SetSink(prevSink)

	_, span := StartSpan(context.Background(), "class-load")
	span.End()

	found := false
	for _, l := range lines {
		if strings.Contains(l, "class-load") {
			found = true
		}
	}
	assert.True(t, found, "expected an exported span line mentioning the span name, got %v", lines)
}
