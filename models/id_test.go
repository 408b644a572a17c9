package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialIDGeneratorNew(t *testing.T) {
	t.Run("returns a new id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			id := idGen.New()
			require.Equal(t, uint32(i), id)
		}
	})

	t.Run("returns the smallest reusable id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			idGen.New()
		}

		idGen.Reuse(4)
		idGen.Reuse(2)
		idGen.Reuse(4)
		require.Equal(t, uint32(2), idGen.New())
		require.Equal(t, uint32(4), idGen.New())
		require.Equal(t, uint32(6), idGen.New())
	})

	t.Run("ignores unknown ids", func(t *testing.T) {
		var idGen SequentialIDGenerator

		idGen.Reuse(0)
		idGen.Reuse(3)
		require.Equal(t, uint32(1), idGen.New())
	})
}
