package molecule

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// ParseMolBlock parses a MOL V2000 block. Explicit hydrogen atoms are folded
// into the hydrogen count of their heavy neighbour, aromatic bonds (type 4)
// mark their atoms aromatic and Kekulé rings are aromatized.
func ParseMolBlock(block string) (*Graph, error) {
	lines := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
	if len(lines) < 4 {
		return nil, molError("too few lines")
	}

	countsAt := 3
	for i, line := range lines {
		if strings.Contains(line, "V3000") {
			return nil, errors.NewValidationError(errors.ErrCodeMoleculeInvalidFormat, "MOL V3000 is not supported")
		}
		if strings.Contains(line, "V2000") {
			countsAt = i
			break
		}
	}
	counts := lines[countsAt]
	numAtoms, err1 := strconv.Atoi(strings.TrimSpace(column(counts, 0, 3)))
	numBonds, err2 := strconv.Atoi(strings.TrimSpace(column(counts, 3, 6)))
	if err1 != nil || err2 != nil {
		return nil, molError(fmt.Sprintf("malformed counts line %q", counts))
	}
	body := lines[countsAt+1:]
	if len(body) < numAtoms+numBonds {
		return nil, molError("lines too short for atoms and bonds")
	}

	atoms := make([]Atom, numAtoms)
	for i := 0; i < numAtoms; i++ {
		line := body[i]
		sym := strings.TrimSpace(column(line, 31, 34))
		if sym == "" {
			// Some writers do not pad; fall back to whitespace fields.
			if f := strings.Fields(line); len(f) >= 4 {
				sym = f[3]
			}
		}
		if !KnownElement(sym) {
			return nil, molError(fmt.Sprintf("atom %d: unknown element %q", i+1, sym))
		}
		atoms[i] = Atom{Element: sym, Charge: molChargeCode(parseIntSafe(column(line, 36, 39)))}
	}

	var bonds []Bond
	for i := 0; i < numBonds; i++ {
		line := body[numAtoms+i]
		from := parseIntSafe(column(line, 0, 3)) - 1
		to := parseIntSafe(column(line, 3, 6)) - 1
		code := parseIntSafe(column(line, 6, 9))
		if from < 0 || from >= numAtoms || to < 0 || to >= numAtoms {
			return nil, molError(fmt.Sprintf("bond %d references a missing atom", i+1))
		}
		order := BondOrder(code)
		if order < BondSingle || order > BondAromatic {
			return nil, molError(fmt.Sprintf("bond %d: unsupported bond type %d", i+1, code))
		}
		bonds = append(bonds, Bond{Begin: from, End: to, Order: order})
	}

	chargeOverride := false
	for _, line := range body[numAtoms+numBonds:] {
		if strings.HasPrefix(line, "M  END") {
			break
		}
		tag := strings.TrimSpace(column(line, 0, 6))
		if tag != "M  CHG" && tag != "M  ISO" {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 3 {
			return nil, molError(fmt.Sprintf("malformed property line %q", line))
		}
		n := parseIntSafe(f[2])
		if len(f) < 3+2*n {
			return nil, molError(fmt.Sprintf("malformed property line %q", line))
		}
		if tag == "M  CHG" && !chargeOverride {
			// Any CHG line supersedes all atom-block charges.
			for i := range atoms {
				atoms[i].Charge = 0
			}
			chargeOverride = true
		}
		for k := 0; k < n; k++ {
			idx := parseIntSafe(f[3+2*k]) - 1
			val := parseIntSafe(f[4+2*k])
			if idx < 0 || idx >= numAtoms {
				return nil, molError(fmt.Sprintf("property line references atom %d", idx+1))
			}
			if tag == "M  CHG" {
				atoms[idx].Charge = val
			} else {
				atoms[idx].Isotope = val
			}
		}
	}

	for _, b := range bonds {
		if b.Order == BondAromatic {
			atoms[b.Begin].Aromatic = true
			atoms[b.End].Aromatic = true
		}
	}

	heavyAtoms, heavyBonds := foldHydrogens(atoms, bonds)
	if len(heavyAtoms) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "MOL block contains no heavy atoms")
	}
	g, err := NewGraph(heavyAtoms, heavyBonds)
	if err != nil {
		return nil, err
	}
	return g.Aromatize()
}

// foldHydrogens removes hydrogen atoms bonded to exactly one heavy atom and
// adds them to that atom's explicit hydrogen count. Atom indices are
// renumbered to close the gaps.
func foldHydrogens(atoms []Atom, bonds []Bond) ([]Atom, []Bond) {
	removable := make([]bool, len(atoms))
	neighbor := make([]int, len(atoms))
	degree := make([]int, len(atoms))
	for _, b := range bonds {
		degree[b.Begin]++
		degree[b.End]++
		neighbor[b.Begin] = b.End
		neighbor[b.End] = b.Begin
	}
	for i, a := range atoms {
		if a.Element == "H" && a.Charge == 0 && a.Isotope == 0 && degree[i] == 1 && atoms[neighbor[i]].Element != "H" {
			removable[i] = true
		}
	}

	remap := make([]int, len(atoms))
	var out []Atom
	for i, a := range atoms {
		if removable[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(out)
		out = append(out, a)
	}
	for i := range atoms {
		if removable[i] {
			out[remap[neighbor[i]]].ExplicitH++
		}
	}
	var outBonds []Bond
	for _, b := range bonds {
		if remap[b.Begin] < 0 || remap[b.End] < 0 {
			continue
		}
		outBonds = append(outBonds, Bond{Begin: remap[b.Begin], End: remap[b.End], Order: b.Order})
	}
	return out, outBonds
}

// ReadSDF reads every record of an SD file. Records are separated by "$$$$";
// data items after "M  END" are ignored.
func ReadSDF(r io.Reader) ([]*Graph, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var (
		out    []*Graph
		record []string
		index  int
	)
	flush := func() error {
		if len(strings.TrimSpace(strings.Join(record, ""))) == 0 {
			record = record[:0]
			return nil
		}
		g, err := ParseMolBlock(strings.Join(record, "\n"))
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeUnknown, "SD record %d", index+1)
		}
		out = append(out, g)
		index++
		record = record[:0]
		return nil
	}
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "$$$$") {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		record = append(record, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMoleculeParsingFailed, "read SD file")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// molChargeCode decodes the V2000 atom-block charge field.
func molChargeCode(code int) int {
	switch code {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	case 5:
		return -1
	case 6:
		return -2
	case 7:
		return -3
	default:
		return 0
	}
}

func column(line string, from, to int) string {
	if from >= len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return line[from:to]
}

func parseIntSafe(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func molError(msg string) error {
	return errors.NewValidationError(errors.ErrCodeMoleculeInvalidFormat, "MOL block: "+msg)
}

//Personal.AI order the ending
