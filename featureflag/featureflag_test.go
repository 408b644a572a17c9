package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagDisableSearchReceipts)})

	t.Run("is set", func(t *testing.T) {
		require.True(t, f.IsSet(FlagDisableSearchReceipts))
		require.False(t, f.IsSet(FlagDisableOcclusionCulling))
	})

	t.Run("run if enabled", func(t *testing.T) {
		var ran bool
		f.IfSet(FlagDisableSearchReceipts, func() {
			ran = true
		})
		require.True(t, ran)

		ran = false
		f.IfSet(FlagDisableFrameStamping, func() {
			ran = true
		})
		require.False(t, ran)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var ran bool
		f.IfNotSet(FlagDisableSearchReceipts, func() {
			ran = true
		})
		require.False(t, ran)

		f.IfNotSet(FlagDisableFrameStamping, func() {
			ran = true
		})
		require.True(t, ran)
	})

	t.Run("nil flags", func(t *testing.T) {
		var empty FeatureFlag
		require.False(t, empty.IsSet(FlagDisableFrameStamping))
	})
}
