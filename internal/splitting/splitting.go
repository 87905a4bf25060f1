package splitting

import (
	"fmt"
	"sort"

	"github.com/nerrad567/vdc-core/internal/dsuid"
)

// Mounting says how sibling devices of one unit relate physically.
type Mounting int

const (
	// Integrated units are permanently assembled; siblings share a base.
	Integrated Mounting = iota
	// Detachable units consist of modules that can be removed separately.
	Detachable
)

// InputKind selects the collection an input belongs to.
type InputKind int

// Input kinds.
const (
	Button InputKind = iota
	BinaryInput
	Sensor
)

func (k InputKind) String() string {
	switch k {
	case Button:
		return "button"
	case BinaryInput:
		return "binaryInput"
	case Sensor:
		return "sensor"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// AutoIndex asks Split to pick the next free input index.
const AutoIndex = -1

// Description is the capability description of one physical unit.
type Description struct {
	Base     dsuid.DSUID
	Mounting Mounting

	Functions []Function
	Inputs    []Input

	// InputOnlySubIndex is used for the device that collects unbound
	// inputs when the unit has no outputs.
	InputOnlySubIndex int
}

// Function is one output function of the unit.
type Function struct {
	// Key identifies the function for Input.Function.
	Key      string
	SubIndex int
	Name     string

	// OutputFunction and Channels use the protocol's numeric codes.
	OutputFunction int
	Channels       []int

	ZoneID       int
	PrimaryGroup int

	// SceneSet names the scene table. Functions in one Combine group with
	// different scene sets behave independently.
	SceneSet string

	// Combine joins functions that form one output, such as the colour
	// channels of one lamp. Empty means independent.
	Combine string

	ModuleAddress string
}

// Input is a button, binary input or sensor.
type Input struct {
	Kind  InputKind
	Index int
	Name  string

	// Type is the button, binary input or sensor type code.
	Type     int
	Group    int
	Function int

	// Function key this input is bound to; empty means unbound.
	BoundTo string

	// Standalone inputs become their own device.
	Standalone    bool
	SubIndex      int
	ZoneID        int
	PrimaryGroup  int
	ModuleAddress string
}

// OutputSpec is the output of a device spec.
type OutputSpec struct {
	OutputFunction int
	Channels       []int
	SceneSet       string
}

// InputSpec is one entry of a device's input collection.
type InputSpec struct {
	Index    int
	Name     string
	Type     int
	Group    int
	Function int
}

// Spec describes one vdSD to create.
type Spec struct {
	DSUID        dsuid.DSUID
	SubIndex     int
	Name         string
	ZoneID       int
	PrimaryGroup int

	// Output is nil for input-only devices.
	Output *OutputSpec

	Buttons      []InputSpec
	BinaryInputs []InputSpec
	Sensors      []InputSpec

	moduleAddress string
	keys          []string
	standalone    bool
	collector     bool
}

// Split applies the splitting rules to d.
//
// Returns:
//   - []Spec: Devices ordered by sub-device index
//   - error: A sentinel from this package describing the first problem
func Split(d Description) ([]Spec, error) {
	if len(d.Functions) == 0 && len(d.Inputs) == 0 {
		return nil, ErrEmptyDescription
	}

	specs := splitOutputs(d.Functions)

	var unbound []Input
	for _, in := range d.Inputs {
		switch {
		case in.Standalone:
			specs = append(specs, Spec{
				SubIndex:      in.SubIndex,
				Name:          in.Name,
				ZoneID:        in.ZoneID,
				PrimaryGroup:  in.PrimaryGroup,
				moduleAddress: in.ModuleAddress,
				standalone:    true,
			})
		case in.BoundTo == "":
			unbound = append(unbound, in)
		}
	}
	sort.SliceStable(specs, func(i, j int) bool { return specs[i].SubIndex < specs[j].SubIndex })

	if err := checkSubIndices(specs); err != nil {
		return nil, err
	}

	if len(unbound) > 0 && firstOutput(specs) < 0 {
		specs = append(specs, Spec{SubIndex: d.InputOnlySubIndex, collector: true})
		sort.SliceStable(specs, func(i, j int) bool { return specs[i].SubIndex < specs[j].SubIndex })
		if err := checkSubIndices(specs); err != nil {
			return nil, err
		}
	}

	if err := attachInputs(specs, d.Inputs); err != nil {
		return nil, err
	}
	if err := assignIDs(specs, d); err != nil {
		return nil, err
	}
	return specs, nil
}

// splitOutputs implements rules 1 and 2 for outputs.
func splitOutputs(fns []Function) []Spec {
	type groupKey struct {
		combine  string
		zone     int
		group    int
		sceneSet string
	}

	var (
		specs []Spec
		index = make(map[groupKey]int)
	)
	for i, fn := range fns {
		key := groupKey{fn.Combine, fn.ZoneID, fn.PrimaryGroup, fn.SceneSet}
		if fn.Combine == "" {
			// Independent: make the key unique.
			key.combine = fmt.Sprintf("\x00%d", i)
		}

		if at, ok := index[key]; ok {
			s := &specs[at]
			s.Output.Channels = append(s.Output.Channels, fn.Channels...)
			s.keys = append(s.keys, fn.Key)
			if fn.SubIndex < s.SubIndex {
				s.SubIndex = fn.SubIndex
			}
			continue
		}

		index[key] = len(specs)
		specs = append(specs, Spec{
			SubIndex:     fn.SubIndex,
			Name:         fn.Name,
			ZoneID:       fn.ZoneID,
			PrimaryGroup: fn.PrimaryGroup,
			Output: &OutputSpec{
				OutputFunction: fn.OutputFunction,
				Channels:       append([]int(nil), fn.Channels...),
				SceneSet:       fn.SceneSet,
			},
			moduleAddress: fn.ModuleAddress,
			keys:          []string{fn.Key},
		})
	}
	return specs
}

func checkSubIndices(specs []Spec) error {
	for i := 1; i < len(specs); i++ {
		if specs[i].SubIndex == specs[i-1].SubIndex {
			return fmt.Errorf("%w: %d", ErrDuplicateSubIndex, specs[i].SubIndex)
		}
	}
	return nil
}

func firstOutput(specs []Spec) int {
	for i := range specs {
		if specs[i].Output != nil {
			return i
		}
	}
	return -1
}

// attachInputs implements rule 3.
func attachInputs(specs []Spec, inputs []Input) error {
	byKey := make(map[string]int)
	for i := range specs {
		for _, k := range specs[i].keys {
			if k != "" {
				byKey[k] = i
			}
		}
	}

	standaloneAt := make(map[int]int)
	fallback := firstOutput(specs)
	for i := range specs {
		switch {
		case specs[i].standalone:
			standaloneAt[specs[i].SubIndex] = i
		case specs[i].collector && fallback < 0:
			fallback = i
		}
	}

	for _, in := range inputs {
		var at int
		switch {
		case in.Standalone:
			at = standaloneAt[in.SubIndex]
		case in.BoundTo != "":
			i, ok := byKey[in.BoundTo]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownFunction, in.BoundTo)
			}
			at = i
		default:
			at = fallback
		}
		if err := specs[at].addInput(in); err != nil {
			return err
		}
	}

	for i := range specs {
		specs[i].sortInputs()
	}
	return nil
}

func (s *Spec) collection(k InputKind) *[]InputSpec {
	switch k {
	case BinaryInput:
		return &s.BinaryInputs
	case Sensor:
		return &s.Sensors
	default:
		return &s.Buttons
	}
}

func (s *Spec) addInput(in Input) error {
	list := s.collection(in.Kind)
	idx := in.Index
	if idx == AutoIndex {
		idx = 0
		for _, e := range *list {
			if e.Index >= idx {
				idx = e.Index + 1
			}
		}
	}
	for _, e := range *list {
		if e.Index == idx {
			return fmt.Errorf("%w: %s %d on sub-device %d", ErrDuplicateInputIndex, in.Kind, idx, s.SubIndex)
		}
	}
	*list = append(*list, InputSpec{
		Index:    idx,
		Name:     in.Name,
		Type:     in.Type,
		Group:    in.Group,
		Function: in.Function,
	})
	return nil
}

func (s *Spec) sortInputs() {
	for _, list := range []*[]InputSpec{&s.Buttons, &s.BinaryInputs, &s.Sensors} {
		l := *list
		sort.SliceStable(l, func(i, j int) bool { return l[i].Index < l[j].Index })
	}
}

// assignIDs implements rule 4. A detachable module carrying several
// devices keeps one independent base, Independent(address), and numbers its
// devices 0, 1, ... in sub-device order, so the first device of every module
// is Independent(address) regardless of where the module is mounted.
func assignIDs(specs []Spec, d Description) error {
	perModule := make(map[dsuid.DSUID]int)
	seen := make(map[dsuid.DSUID]int, len(specs))
	for i := range specs {
		s := &specs[i]
		var err error
		switch d.Mounting {
		case Detachable:
			if s.moduleAddress == "" {
				return fmt.Errorf("%w: sub-device %d", ErrMissingModuleAddress, s.SubIndex)
			}
			var base dsuid.DSUID
			if base, err = dsuid.Independent(s.moduleAddress); err == nil {
				s.DSUID, err = dsuid.Derive(base, perModule[base])
				perModule[base]++
			}
		default:
			if d.Base.IsEmpty() {
				return ErrMissingBase
			}
			s.DSUID, err = dsuid.Derive(d.Base, s.SubIndex)
		}
		if err != nil {
			return fmt.Errorf("sub-device %d: %w", s.SubIndex, err)
		}
		if prev, dup := seen[s.DSUID]; dup {
			return fmt.Errorf("%w: sub-devices %d and %d both map to %s", ErrDuplicateDSUID, prev, s.SubIndex, s.DSUID)
		}
		seen[s.DSUID] = s.SubIndex
	}
	return nil
}
