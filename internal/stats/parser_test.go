package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("extracts total and throughput", func(t *testing.T) {
		sample, err := Parse("2026-08-30 12:00:01 Stats | Total: 123456789 | Vitesse: 4521 k/s")
		require.NoError(t, err)
		assert.Equal(t, uint64(123456789), sample.KeysChecked)
		assert.Equal(t, 4521.0, sample.KeysPerSec)
	})

	t.Run("fractional throughput", func(t *testing.T) {
		sample, err := Parse("x | Total: 10 | Vitesse: 0.5 k/s")
		require.NoError(t, err)
		assert.Equal(t, 0.5, sample.KeysPerSec)
	})

	t.Run("first matching line wins", func(t *testing.T) {
		tail := "noise\n" +
			"run | Total: 100 | Vitesse: 1 k/s\n" +
			"run | Total: 999 | Vitesse: 9 k/s\n"
		sample, err := Parse(tail)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), sample.KeysChecked)
	})

	t.Run("lines with only one label are skipped", func(t *testing.T) {
		tail := "checkpoint | Total: 42\n" +
			"run | Total: 7 | Vitesse: 3 k/s\n"
		sample, err := Parse(tail)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), sample.KeysChecked)
	})

	t.Run("no matching line", func(t *testing.T) {
		_, err := Parse("solver starting\nloading puzzle file\n")
		require.Error(t, err)
	})

	t.Run("empty tail", func(t *testing.T) {
		_, err := Parse("")
		require.Error(t, err)
	})

	t.Run("malformed total", func(t *testing.T) {
		_, err := Parse("run | Total: abc | Vitesse: 3 k/s")
		require.Error(t, err)
	})

	t.Run("malformed throughput", func(t *testing.T) {
		_, err := Parse("run | Total: 7 | Vitesse: fast k/s")
		require.Error(t, err)
	})

	t.Run("label without value", func(t *testing.T) {
		_, err := Parse("run | Total: | Vitesse: 3 k/s")
		require.Error(t, err)
	})
}
