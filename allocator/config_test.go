package allocator_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/memsim/allocator"
	"github.com/vkngwrapper/memsim/memutils"
)

func TestConfigNames(t *testing.T) {
	var names []string
	for _, config := range allocator.DefaultConfigs() {
		names = append(names, config.String())
	}

	require.Equal(t, []string{
		"FirstFit(IncreasingSize, PreciseX1)",
		"FirstFit(DecreasingSize, PreciseX1)",
		"FirstFit(NextFit, PreciseX1)",
		"FirstFit(NextFit, PreciseX15)",
		"FirstFit(NextFit, MultiplesOf(16))",
		"Buddy",
	}, names)

	require.Equal(t, "StackAllocator", allocator.StackConfig().String())
	require.Equal(t, "Null", allocator.NullConfig().String())
	require.Equal(t, "Buddy", allocator.Config{Kind: allocator.KindBuddy}.String())
	require.Equal(t, "Buddy(32)", allocator.Config{Kind: allocator.KindBuddy, MinBlockSize: 32}.String())
}

func TestConfigValidate(t *testing.T) {
	for _, config := range append(allocator.DefaultConfigs(), allocator.ReferenceConfigs()...) {
		require.NoError(t, config.Validate())
	}

	require.Error(t, allocator.Config{}.Validate())
	require.Error(t, allocator.Config{Kind: allocator.KindFirstFit, Ordering: 7}.Validate())
	require.Error(t, allocator.FirstFitConfig(allocator.OrderingNextFit, allocator.MultiplesOf(0)).Validate())
	require.Error(t, allocator.FirstFitConfig(allocator.OrderingNextFit, allocator.Quantization{Policy: 9}).Validate())
	require.Error(t, allocator.Config{Kind: allocator.KindStack, MinBlockSize: 16}.Validate())
	require.Error(t, allocator.Config{Kind: allocator.KindBuddy, MinBlockSize: allocator.MemorySize * 2}.Validate())

	err := allocator.Config{Kind: allocator.KindBuddy, MinBlockSize: 24}.Validate()
	require.ErrorIs(t, err, memutils.PowerOfTwoError)

	_, err = allocator.New(allocator.Config{Kind: allocator.KindBuddy, MinBlockSize: 24})
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
}

func TestNewBuildsEveryKind(t *testing.T) {
	testCases := []struct {
		config   allocator.Config
		expected any
	}{
		{allocator.FirstFitConfig(allocator.OrderingDecreasingSize, allocator.PreciseX1()), &allocator.FirstFit{}},
		{allocator.BuddyConfig(), &allocator.Buddy{}},
		{allocator.StackConfig(), &allocator.Stack{}},
		{allocator.NullConfig(), allocator.Null{}},
	}

	for _, testCase := range testCases {
		a, err := allocator.New(testCase.config)
		require.NoError(t, err)
		require.IsType(t, testCase.expected, a)
		require.Equal(t, testCase.config, a.Config())
	}
}

func TestQuantizationApply(t *testing.T) {
	require.Equal(t, 33, allocator.PreciseX1().Apply(33))
	require.Equal(t, 50, allocator.PreciseX15().Apply(33))
	require.Equal(t, 48, allocator.MultiplesOf(16).Apply(33))
	require.Equal(t, 32, allocator.MultiplesOf(16).Apply(32))
	require.Equal(t, 35, allocator.MultiplesOf(7).Apply(33))
}
