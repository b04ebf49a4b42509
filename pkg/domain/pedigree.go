package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// Generations is the number of ancestor generations a pedigree tracks.
	Generations = 5
	// SlotCount is the number of ancestor slots across all generations (2+4+8+16+32).
	SlotCount = (1 << (Generations + 1)) - 2
)

// Slot addresses one ancestor position in a Pedigree.
//
// Slots are laid out generation by generation. Within generation g the
// position is read as g bits, most significant first, each bit one step
// away from the animal: 0 follows the dam, 1 follows the sire.
type Slot int

// Named slots for the first two generations.
const (
	Mother              Slot = 0
	Father              Slot = 1
	MaternalGrandmother Slot = 2
	MaternalGrandfather Slot = 3
	PaternalGrandmother Slot = 4
	PaternalGrandfather Slot = 5
)

var slotAliases = map[Slot]string{
	Mother:              "mother",
	Father:              "father",
	MaternalGrandmother: "maternal_grandmother",
	MaternalGrandfather: "maternal_grandfather",
	PaternalGrandmother: "paternal_grandmother",
	PaternalGrandfather: "paternal_grandfather",
}

// SlotAt returns the slot for the given generation (1..Generations) and
// position (0..2^generation-1).
func SlotAt(generation, position int) (Slot, error) {
	if generation < 1 || generation > Generations {
		return 0, fmt.Errorf("generation %d out of range 1..%d", generation, Generations)
	}
	width := 1 << generation
	if position < 0 || position >= width {
		return 0, fmt.Errorf("position %d out of range for generation %d", position, generation)
	}
	return Slot(width - 2 + position), nil
}

// GenerationSlots lists the slots of one generation in position order.
func GenerationSlots(generation int) []Slot {
	if generation < 1 || generation > Generations {
		return nil
	}
	width := 1 << generation
	out := make([]Slot, width)
	for i := range out {
		out[i] = Slot(width - 2 + i)
	}
	return out
}

// Valid reports whether the slot addresses a real position.
func (s Slot) Valid() bool { return s >= 0 && int(s) < SlotCount }

// Generation returns the generation the slot belongs to, 1 being parents.
func (s Slot) Generation() int {
	for g := 1; g <= Generations; g++ {
		if int(s) < (1<<(g+1))-2 {
			return g
		}
	}
	return 0
}

// Position returns the slot offset within its generation.
func (s Slot) Position() int {
	g := s.Generation()
	return int(s) - ((1 << g) - 2)
}

// Path returns the dam/sire steps leading from the animal to the ancestor.
func (s Slot) Path() []string {
	g := s.Generation()
	if g == 0 {
		return nil
	}
	pos := s.Position()
	steps := make([]string, g)
	for i := 0; i < g; i++ {
		if pos&(1<<(g-1-i)) != 0 {
			steps[i] = "sire"
		} else {
			steps[i] = "dam"
		}
	}
	return steps
}

// String returns the stable name used as the JSON key for the slot.
func (s Slot) String() string {
	if alias, ok := slotAliases[s]; ok {
		return alias
	}
	if !s.Valid() {
		return fmt.Sprintf("slot(%d)", int(s))
	}
	return strings.Join(s.Path(), "_")
}

// ParseSlot resolves a slot name. Both the named aliases and dam/sire
// paths such as "sire_dam" are accepted.
func ParseSlot(name string) (Slot, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for slot, alias := range slotAliases {
		if alias == name {
			return slot, nil
		}
	}
	steps := strings.Split(name, "_")
	if len(steps) == 0 || len(steps) > Generations {
		return 0, fmt.Errorf("unknown pedigree slot %q", name)
	}
	pos := 0
	for _, step := range steps {
		pos <<= 1
		switch step {
		case "dam":
		case "sire":
			pos |= 1
		default:
			return 0, fmt.Errorf("unknown pedigree slot %q", name)
		}
	}
	return SlotAt(len(steps), pos)
}

// Pedigree holds an ancestor reference for each of the SlotCount slots.
//
// A reference is empty, a stable animal ID, or a free-text name imported
// from a paper pedigree. A non-empty reference is never guaranteed to
// resolve to a known animal.
type Pedigree [SlotCount]string

// Get returns the raw reference stored in a slot.
func (p Pedigree) Get(s Slot) string {
	if !s.Valid() {
		return ""
	}
	return p[s]
}

// Set stores a reference in a slot. Invalid slots are ignored.
func (p *Pedigree) Set(s Slot, ref string) {
	if !s.Valid() {
		return
	}
	p[s] = ref
}

// MotherRef returns the raw mother reference.
func (p Pedigree) MotherRef() string { return p[Mother] }

// FatherRef returns the raw father reference.
func (p Pedigree) FatherRef() string { return p[Father] }

// Generation returns the raw references of one generation in position order.
func (p Pedigree) Generation(generation int) []string {
	slots := GenerationSlots(generation)
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = p[s]
	}
	return out
}

// HasGeneration reports whether any slot of the generation holds a non-blank reference.
func (p Pedigree) HasGeneration(generation int) bool {
	for _, s := range GenerationSlots(generation) {
		if strings.TrimSpace(p[s]) != "" {
			return true
		}
	}
	return false
}

// Populated returns the number of non-blank slots.
func (p Pedigree) Populated() int {
	n := 0
	for _, ref := range p {
		if strings.TrimSpace(ref) != "" {
			n++
		}
	}
	return n
}

// MarshalJSON encodes populated slots as an object keyed by slot name.
func (p Pedigree) MarshalJSON() ([]byte, error) {
	out := make(map[string]string)
	for i, ref := range p {
		if ref == "" {
			continue
		}
		out[Slot(i).String()] = ref
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an object keyed by slot name. Unknown keys are rejected.
func (p *Pedigree) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var decoded Pedigree
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		slot, err := ParseSlot(k)
		if err != nil {
			return err
		}
		decoded[slot] = raw[k]
	}
	*p = decoded
	return nil
}
