package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/memsim/memutils"
)

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func (t *Tracker) appendTo(builder *strings.Builder) {
	builder.WriteString("  ")
	builder.WriteString(t.Name())
	builder.WriteString("\n")

	if t.faultedAtByteCount.IsSet() {
		fmt.Fprintf(builder, "   faulted %d/%d time(s) at avg byte/chunk: %v/%v\n",
			t.faultedAtByteCount.Count(),
			t.runCount,
			roundTenth(t.faultedAtByteCount.Mean()),
			roundTenth(t.faultedAtAllocation.Mean()))

		if fault, ok := t.RepresentativeFault(); ok {
			fmt.Fprintf(builder, "   most common fault (%d time(s)): %s\n", fault.Count, fault.Message)
		}
	}

	fmt.Fprintf(builder, "    allocation cost: %s\n", t.allTime.AllocationCost)
	fmt.Fprintf(builder, "    free cost: %s\n", t.allTime.FreeCost)
	fmt.Fprintf(builder, "    relative internal fragmentation: %s\n", t.allTime.InternalFragmentation)
	fmt.Fprintf(builder, "    relative external fragmentation (at %d bytes): %s\n", t.options.ExternalFragmentationThreshold, t.allTime.ExternalFragmentation)
}

// String renders a human-readable report of everything recorded so far
func (s *State) String() string {
	var builder strings.Builder

	builder.WriteString("Test of {")
	for _, tracker := range s.trackers {
		builder.WriteString(" ")
		builder.WriteString(tracker.Name())
	}
	builder.WriteString(" }:\n")

	fmt.Fprintf(&builder, "  bytes per allocation: %s\n", s.bytesPerAllocation)
	fmt.Fprintf(&builder, "  most chunks/bytes simultaneously allocated: %d/%d\n", s.mostAllocatedChunks, s.mostBytesAllocated)

	for _, tracker := range s.trackers {
		tracker.appendTo(&builder)
	}

	return builder.String()
}

func writeMetric(json *jwriter.ObjectState, name string, metric memutils.Metric) {
	obj := json.Name(name).Object()
	metric.WriteJSON(&obj)
	obj.End()
}

func (t *Tracker) writeJSON(json *jwriter.ObjectState) {
	json.Name("Name").String(t.Name())
	json.Name("Runs").Int(t.runCount)
	json.Name("FaultCount").Int(t.FaultCount())

	writeMetric(json, "FaultedAtBytes", t.faultedAtByteCount)
	writeMetric(json, "FaultedAtChunks", t.faultedAtAllocation)
	writeMetric(json, "AllocationCost", t.allTime.AllocationCost)
	writeMetric(json, "FreeCost", t.allTime.FreeCost)
	writeMetric(json, "InternalFragmentation", t.allTime.InternalFragmentation)
	writeMetric(json, "ExternalFragmentation", t.allTime.ExternalFragmentation)

	messages := json.Name("FaultMessages").Array()
	for _, message := range t.FaultMessages() {
		obj := messages.Object()
		obj.Name("Message").String(message.Message)
		obj.Name("Count").Int(message.Count)
		obj.End()
	}
	messages.End()

	allocatorObj := json.Name("Allocator").Object()
	t.allocator.WriteJSON(&allocatorObj)
	allocatorObj.End()
}

// WriteJSON writes the same information as String as a single json object
func (s *State) WriteJSON(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	obj.Name("ExternalFragmentationThreshold").Int(s.options.ExternalFragmentationThreshold)
	obj.Name("MostChunksSimultaneouslyAllocated").Int(s.mostAllocatedChunks)
	obj.Name("MostBytesSimultaneouslyAllocated").Int(s.mostBytesAllocated)
	writeMetric(&obj, "BytesPerAllocation", s.bytesPerAllocation)

	live := s.LiveStatistics()
	liveObj := obj.Name("LiveStatistics").Object()
	live.WriteJSON(&liveObj)
	liveObj.End()

	trackers := obj.Name("Allocators").Array()
	defer trackers.End()

	for _, tracker := range s.trackers {
		trackerObj := trackers.Object()
		tracker.writeJSON(&trackerObj)
		trackerObj.End()
	}
}
