/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, int64(16*1024*1024), cfg.HeapSize)
	assert.Empty(t, cfg.JavaHome)
	assert.Empty(t, cfg.Classpath)
	assert.False(t, cfg.TraceVerbose)
	assert.False(t, cfg.OtelEnabled)
}

func TestBindFlagsThenResolveUsesFlagDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("corevm", pflag.ContinueOnError)
	v := viper.New()
	require.NoError(t, BindFlags(flags, v))
	require.NoError(t, flags.Parse(nil))

	cfg := Resolve(v)
	assert.Equal(t, int64(16*1024*1024), cfg.HeapSize)
	assert.False(t, cfg.TraceVerbose)
}

func TestBindFlagsThenResolveHonorsParsedFlags(t *testing.T) {
	flags := pflag.NewFlagSet("corevm", pflag.ContinueOnError)
	v := viper.New()
	require.NoError(t, BindFlags(flags, v))
	require.NoError(t, flags.Parse([]string{
		"--heap-size=1048576",
		"--java-home=/opt/jdk",
		"--classpath=/a.jar,/b.jar",
		"--trace",
		"--otel",
	}))

	cfg := Resolve(v)
	assert.Equal(t, int64(1048576), cfg.HeapSize)
	assert.Equal(t, "/opt/jdk", cfg.JavaHome)
	assert.Equal(t, []string{"/a.jar", "/b.jar"}, cfg.Classpath)
	assert.True(t, cfg.TraceVerbose)
	assert.True(t, cfg.OtelEnabled)
}

func TestBindFlagsHonorsEnvOverride(t *testing.T) {
	flags := pflag.NewFlagSet("corevm", pflag.ContinueOnError)
	v := viper.New()
	require.NoError(t, BindFlags(flags, v))
	require.NoError(t, flags.Parse(nil))

	t.Setenv("COREVM_HEAP_SIZE", "2097152")

	cfg := Resolve(v)
	assert.Equal(t, int64(2097152), cfg.HeapSize)
}
