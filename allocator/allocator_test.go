package allocator_test

import (
	"math/rand"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/memsim/allocator"
)

func allConfigs() []allocator.Config {
	return append(allocator.DefaultConfigs(),
		allocator.FirstFitConfig(allocator.OrderingIncreasingSize, allocator.PreciseX15()),
		allocator.FirstFitConfig(allocator.OrderingDecreasingSize, allocator.MultiplesOf(64)),
		allocator.Config{Kind: allocator.KindBuddy, MinBlockSize: 256},
		allocator.StackConfig(),
		allocator.NullConfig(),
	)
}

func TestMemoryChunk(t *testing.T) {
	chunk := allocator.MemoryChunk{Offset: 100, Size: 50}
	require.Equal(t, 150, chunk.End())
	require.Equal(t, "[100,150)", chunk.String())
	require.NoError(t, chunk.Validate())

	require.True(t, chunk.Overlaps(allocator.MemoryChunk{Offset: 149, Size: 10}))
	require.True(t, chunk.Overlaps(allocator.MemoryChunk{Offset: 0, Size: 101}))
	require.False(t, chunk.Overlaps(allocator.MemoryChunk{Offset: 150, Size: 10}))
	require.False(t, chunk.Overlaps(allocator.MemoryChunk{Offset: 0, Size: 100}))

	require.Error(t, allocator.MemoryChunk{Offset: -1, Size: 1}.Validate())
	require.Error(t, allocator.MemoryChunk{Offset: allocator.MemorySize, Size: 0}.Validate())
	require.Error(t, allocator.MemoryChunk{Offset: 0, Size: -1}.Validate())
	require.Error(t, allocator.MemoryChunk{Offset: allocator.MemorySize - 10, Size: 11}.Validate())
	require.NoError(t, allocator.MemoryChunk{Offset: allocator.MemorySize - 10, Size: 10}.Validate())
}

func TestStepCounter(t *testing.T) {
	var counter allocator.StepCounter
	counter.Inc()
	counter.Add(4)
	require.Equal(t, 5, counter.Steps())
	counter.Reset()
	require.Equal(t, 0, counter.Steps())

	var discard *allocator.StepCounter
	discard.Inc()
	discard.Add(10)
	discard.Reset()
	require.Equal(t, 0, discard.Steps())
}

func TestRandomWorkloadKeepsChunksDisjoint(t *testing.T) {
	for _, config := range allConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			a := allocator.MustNew(config)
			rng := rand.New(rand.NewSource(42))

			var live []allocator.MemoryChunk
			requested := 0

			for i := 0; i < 2000; i++ {
				if len(live) == 0 || rng.Intn(3) > 0 {
					size := rng.Intn(256)*rng.Intn(256) + 1
					chunk, err := a.Allocate(size, nil)
					if err != nil {
						continue
					}

					require.NoError(t, chunk.Validate())
					require.Equal(t, size, chunk.Size)
					for _, other := range live {
						require.False(t, chunk.Overlaps(other), "%s overlaps %s", chunk, other)
					}

					live = append(live, chunk)
					requested += size
				} else {
					index := rng.Intn(len(live))
					require.NoError(t, a.Free(live[index], nil))
					requested -= live[index].Size
					live = append(live[:index], live[index+1:]...)
				}

				require.Equal(t, len(live), a.AllocationCount())
				require.GreaterOrEqual(t, a.OccupiedMemoryBytes(), requested)
				require.GreaterOrEqual(t, a.InternalFragmentationBytes(), 0)
				if a.OccupiedMemoryBytes() > 0 {
					require.Less(t, a.InternalFragmentationBytes(), a.OccupiedMemoryBytes())
				}
				require.GreaterOrEqual(t, a.ExternalFragmentationBytes(65536), 0)
			}

			require.NoError(t, a.Validate())
		})
	}
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	for _, config := range allConfigs() {
		if config.Kind == allocator.KindNull {
			continue
		}

		t.Run(config.String(), func(t *testing.T) {
			a := allocator.MustNew(config)

			_, err := a.Allocate(1000, nil)
			require.NoError(t, err)
			before := a.OccupiedMemoryBytes()

			for _, size := range []int{1, 17, 4096, 70000} {
				chunk, err := a.Allocate(size, nil)
				require.NoError(t, err)
				require.NoError(t, a.Free(chunk, nil))
				require.Equal(t, before, a.OccupiedMemoryBytes())
			}
		})
	}
}

func TestCreateNewIsEmpty(t *testing.T) {
	for _, config := range allConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			a := allocator.MustNew(config)
			for i := 0; i < 10; i++ {
				_, _ = a.Allocate(1000+i, nil)
			}

			fresh := a.CreateNew()
			require.Equal(t, a.Config(), fresh.Config())
			require.Equal(t, a.String(), fresh.String())
			require.IsType(t, a, fresh)
			require.Equal(t, 0, fresh.OccupiedMemoryBytes())
			require.Equal(t, 0, fresh.AllocationCount())
			require.NoError(t, fresh.Validate())
		})
	}
}

func TestWriteJSON(t *testing.T) {
	for _, config := range allConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			a := allocator.MustNew(config)
			_, _ = a.Allocate(100, nil)

			writer := jwriter.NewWriter()
			obj := writer.Object()
			a.WriteJSON(&obj)
			obj.End()

			require.NoError(t, writer.Error())
			out := string(writer.Bytes())
			require.Contains(t, out, `"Name":"`+config.String()+`"`)
			require.Contains(t, out, `"TotalBytes":1048576`)
		})
	}
}
