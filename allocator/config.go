package allocator

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/vkngwrapper/memsim/memutils"
)

// Kind identifies which allocation strategy a Config describes
type Kind uint32

const (
	// KindFirstFit is a free-list allocator. See FirstFit.
	KindFirstFit Kind = iota + 1
	// KindBuddy is a binary buddy allocator. See Buddy.
	KindBuddy
	// KindStack is a bump-pointer allocator that never reuses space. See Stack.
	KindStack
	// KindNull is an allocator that always fails. See Null.
	KindNull
)

var kindMapping = map[Kind]string{
	KindFirstFit: "FirstFit",
	KindBuddy:    "Buddy",
	KindStack:    "StackAllocator",
	KindNull:     "Null",
}

func (k Kind) String() string {
	return kindMapping[k]
}

// Ordering selects how a FirstFit allocator orders and searches its free regions
type Ordering uint32

const (
	// OrderingIncreasingSize keeps free regions sorted smallest first and takes the first
	// region large enough for the request
	OrderingIncreasingSize Ordering = iota
	// OrderingDecreasingSize keeps free regions sorted largest first and takes the largest
	OrderingDecreasingSize
	// OrderingNextFit keeps free regions in address order and resumes searching where the
	// previous allocation ended
	OrderingNextFit
)

var orderingMapping = map[Ordering]string{
	OrderingIncreasingSize: "IncreasingSize",
	OrderingDecreasingSize: "DecreasingSize",
	OrderingNextFit:        "NextFit",
}

func (o Ordering) String() string {
	return orderingMapping[o]
}

// QuantizationPolicy selects how a FirstFit allocator rounds requests up before searching
type QuantizationPolicy uint32

const (
	// QuantizePreciseX1 reserves exactly the requested size
	QuantizePreciseX1 QuantizationPolicy = iota
	// QuantizePreciseX15 reserves one and a half times the requested size, rounded up
	QuantizePreciseX15
	// QuantizeMultiplesOf reserves the requested size rounded up to a multiple of Quantization.Multiple
	QuantizeMultiplesOf
)

var quantizationPolicyMapping = map[QuantizationPolicy]string{
	QuantizePreciseX1:   "PreciseX1",
	QuantizePreciseX15:  "PreciseX15",
	QuantizeMultiplesOf: "MultiplesOf",
}

func (p QuantizationPolicy) String() string {
	return quantizationPolicyMapping[p]
}

// Quantization is a rounding rule applied to every request before a free region is searched
// for it. The difference between the rounded and the requested size is internal fragmentation.
type Quantization struct {
	Policy QuantizationPolicy
	// Multiple is only used by QuantizeMultiplesOf
	Multiple int
}

// PreciseX1 reserves exactly the requested size
func PreciseX1() Quantization {
	return Quantization{Policy: QuantizePreciseX1}
}

// PreciseX15 reserves n + (n+1)/2 bytes for a request of n bytes
func PreciseX15() Quantization {
	return Quantization{Policy: QuantizePreciseX15}
}

// MultiplesOf rounds every request up to a multiple of multiple bytes
func MultiplesOf(multiple int) Quantization {
	return Quantization{Policy: QuantizeMultiplesOf, Multiple: multiple}
}

// Apply returns the number of bytes reserved for a request of numBytes
func (q Quantization) Apply(numBytes int) int {
	switch q.Policy {
	case QuantizePreciseX1:
		return numBytes
	case QuantizePreciseX15:
		return numBytes + (numBytes+1)/2
	case QuantizeMultiplesOf:
		return memutils.RoundUp(numBytes, q.Multiple)
	default:
		panic(fmt.Sprintf("unknown quantization policy: %d", q.Policy))
	}
}

// Validate returns an error if the policy is unknown or Multiple does not suit it
func (q Quantization) Validate() error {
	switch q.Policy {
	case QuantizePreciseX1, QuantizePreciseX15:
		if q.Multiple != 0 {
			return errors.Errorf("%s quantization does not take a multiple, got %d", q.Policy, q.Multiple)
		}
	case QuantizeMultiplesOf:
		if q.Multiple < 1 {
			return errors.Errorf("MultiplesOf quantization requires a positive multiple, got %d", q.Multiple)
		}
	default:
		return errors.Errorf("unknown quantization policy: %d", q.Policy)
	}

	return nil
}

// String returns the policy name, with the multiple for MultiplesOf
func (q Quantization) String() string {
	if q.Policy == QuantizeMultiplesOf {
		return "MultiplesOf(" + strconv.Itoa(q.Multiple) + ")"
	}
	return q.Policy.String()
}

const (
	// DefaultBuddyMinBlockSize is the smallest block a Buddy allocator hands out when
	// Config.MinBlockSize is left at 0
	DefaultBuddyMinBlockSize int = 16
)

// Config fully describes an allocator. Two allocators built from equal configs behave
// identically, which is what CreateNew relies on. Config is comparable.
type Config struct {
	Kind Kind

	// Ordering and Quantization are only used by KindFirstFit
	Ordering     Ordering
	Quantization Quantization

	// MinBlockSize is only used by KindBuddy. It must be a power of two; 0 selects
	// DefaultBuddyMinBlockSize.
	MinBlockSize int
}

// FirstFitConfig describes a FirstFit allocator with the given free-region ordering and quantization
func FirstFitConfig(ordering Ordering, quantization Quantization) Config {
	return Config{Kind: KindFirstFit, Ordering: ordering, Quantization: quantization}
}

// BuddyConfig describes a Buddy allocator with the default minimum block size
func BuddyConfig() Config {
	return Config{Kind: KindBuddy, MinBlockSize: DefaultBuddyMinBlockSize}
}

// StackConfig describes the Stack reference allocator
func StackConfig() Config {
	return Config{Kind: KindStack}
}

// NullConfig describes the Null reference allocator
func NullConfig() Config {
	return Config{Kind: KindNull}
}

// DefaultConfigs returns the allocators compared by a default simulation
func DefaultConfigs() []Config {
	return []Config{
		FirstFitConfig(OrderingIncreasingSize, PreciseX1()),
		FirstFitConfig(OrderingDecreasingSize, PreciseX1()),
		FirstFitConfig(OrderingNextFit, PreciseX1()),
		FirstFitConfig(OrderingNextFit, PreciseX15()),
		FirstFitConfig(OrderingNextFit, MultiplesOf(16)),
		BuddyConfig(),
	}
}

// ReferenceConfigs returns the allocators used to bound results: a stack allocator that never
// reuses memory and a null allocator that never succeeds
func ReferenceConfigs() []Config {
	return []Config{
		StackConfig(),
		NullConfig(),
	}
}

// Validate returns an error if the config does not describe an allocator New can build
func (c Config) Validate() error {
	switch c.Kind {
	case KindFirstFit:
		if _, ok := orderingMapping[c.Ordering]; !ok {
			return errors.Errorf("unknown first fit ordering: %d", c.Ordering)
		}
		if c.MinBlockSize != 0 {
			return errors.New("first fit allocators do not take a minimum block size")
		}
		return c.Quantization.Validate()
	case KindBuddy:
		minBlock := c.MinBlockSize
		if minBlock == 0 {
			minBlock = DefaultBuddyMinBlockSize
		}
		if err := memutils.CheckPow2(minBlock, "buddy minimum block size"); err != nil {
			return err
		}
		if minBlock > MemorySize {
			return errors.Errorf("buddy minimum block size %d is larger than the address space", minBlock)
		}
		if c.Ordering != 0 || c.Quantization != (Quantization{}) {
			return errors.New("buddy allocators do not take an ordering or quantization")
		}
	case KindStack, KindNull:
		if c != (Config{Kind: c.Kind}) {
			return errors.Errorf("%s allocators do not take any parameters", c.Kind)
		}
	default:
		return errors.Errorf("unknown allocator kind: %d", c.Kind)
	}

	return nil
}

// String returns the display name of allocators built from this config
func (c Config) String() string {
	switch c.Kind {
	case KindFirstFit:
		return "FirstFit(" + c.Ordering.String() + ", " + c.Quantization.String() + ")"
	case KindBuddy:
		if c.MinBlockSize != 0 && c.MinBlockSize != DefaultBuddyMinBlockSize {
			return "Buddy(" + strconv.Itoa(c.MinBlockSize) + ")"
		}
		return "Buddy"
	default:
		return c.Kind.String()
	}
}

// New builds an empty allocator from a config
func New(config Config) (Allocator, error) {
	err := config.Validate()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid allocator config %s", config)
	}

	switch config.Kind {
	case KindFirstFit:
		return NewFirstFit(config.Ordering, config.Quantization), nil
	case KindBuddy:
		return NewBuddy(config.MinBlockSize), nil
	case KindStack:
		return NewStack(), nil
	case KindNull:
		return NewNull(), nil
	}

	panic(fmt.Sprintf("unhandled allocator kind: %s", config.Kind))
}

// MustNew is New for configs known to be valid
func MustNew(config Config) Allocator {
	a, err := New(config)
	if err != nil {
		panic(err)
	}
	return a
}
