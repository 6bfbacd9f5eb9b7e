package molecule

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// MaxSMILESLength bounds the input accepted by ParseSMILES.
const MaxSMILESLength = 4096

type ringOpening struct {
	atom  int
	order BondOrder // 0 when no bond symbol preceded the digit
}

type smilesParser struct {
	src   []rune
	pos   int
	atoms []Atom
	bonds []Bond

	prev      int
	pending   BondOrder
	hasBond   bool
	branches  []int
	rings     map[int]ringOpening
	bondIndex map[[2]int]bool
}

// ParseSMILES parses a SMILES string into a Graph. Stereo markers are read and
// discarded. Kekulé aromatic rings are converted to aromatic form.
func ParseSMILES(smiles string) (*Graph, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "empty SMILES")
	}
	if len(smiles) > MaxSMILESLength {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeTooLarge,
			fmt.Sprintf("SMILES longer than %d characters", MaxSMILESLength))
	}
	// Only the first whitespace-separated token is the structure; the rest is a title.
	if fields := strings.Fields(smiles); len(fields) > 0 {
		smiles = fields[0]
	}

	p := &smilesParser{
		src:       []rune(smiles),
		prev:      -1,
		rings:     make(map[int]ringOpening),
		bondIndex: make(map[[2]int]bool),
	}
	if err := p.parse(); err != nil {
		var ae *errors.AppError
		if errors.As(err, &ae) {
			return nil, ae.WithDetail(smiles)
		}
		return nil, err
	}
	g, err := NewGraph(p.atoms, p.bonds)
	if err != nil {
		return nil, err
	}
	return g.Aromatize()
}

// MustParseSMILES is ParseSMILES for literals known to be valid. It panics on
// error.
func MustParseSMILES(smiles string) *Graph {
	g, err := ParseSMILES(smiles)
	if err != nil {
		panic(err)
	}
	return g
}

func (p *smilesParser) fail(format string, args ...interface{}) error {
	return errors.NewValidationError(errors.ErrCodeMoleculeInvalidSMILES,
		fmt.Sprintf("position %d: ", p.pos)+fmt.Sprintf(format, args...))
}

func (p *smilesParser) parse() error {
	for p.pos < len(p.src) {
		ch := p.src[p.pos]

		switch {
		case ch == '(':
			if p.prev < 0 {
				return p.fail("branch opened before any atom")
			}
			p.branches = append(p.branches, p.prev)
			p.pos++

		case ch == ')':
			if len(p.branches) == 0 {
				return p.fail("unmatched ')'")
			}
			if p.hasBond {
				return p.fail("bond symbol before ')'")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.pos++

		case ch == '-' || ch == '/' || ch == '\\':
			if err := p.setBond(BondSingle); err != nil {
				return err
			}
		case ch == '=':
			if err := p.setBond(BondDouble); err != nil {
				return err
			}
		case ch == '#':
			if err := p.setBond(BondTriple); err != nil {
				return err
			}
		case ch == ':':
			if err := p.setBond(BondAromatic); err != nil {
				return err
			}

		case ch == '.':
			if p.hasBond {
				return p.fail("bond symbol before '.'")
			}
			p.prev = -1
			p.pos++

		case ch == '[':
			end := p.pos + 1
			for end < len(p.src) && p.src[end] != ']' {
				end++
			}
			if end >= len(p.src) {
				return p.fail("unclosed bracket atom")
			}
			atom, err := parseBracketAtom(string(p.src[p.pos+1 : end]))
			if err != nil {
				return p.fail("%v", err)
			}
			if err := p.addAtom(atom); err != nil {
				return err
			}
			p.pos = end + 1

		case ch == '%':
			if p.pos+2 >= len(p.src) || !unicode.IsDigit(p.src[p.pos+1]) || !unicode.IsDigit(p.src[p.pos+2]) {
				return p.fail("'%%' must be followed by two digits")
			}
			n, _ := strconv.Atoi(string(p.src[p.pos+1 : p.pos+3]))
			if err := p.ringClosure(n); err != nil {
				return err
			}
			p.pos += 3

		case ch >= '0' && ch <= '9':
			if err := p.ringClosure(int(ch - '0')); err != nil {
				return err
			}
			p.pos++

		case unicode.IsLetter(ch):
			atom, advance, ok := parseOrganicAtom(p.src, p.pos)
			if !ok {
				return p.fail("unexpected atom symbol %q", string(ch))
			}
			if err := p.addAtom(atom); err != nil {
				return err
			}
			p.pos += advance

		default:
			return p.fail("unexpected character %q", string(ch))
		}
	}

	switch {
	case p.hasBond:
		return p.fail("dangling bond symbol")
	case len(p.branches) > 0:
		return p.fail("unclosed branch")
	case len(p.rings) > 0:
		for n := range p.rings {
			return p.fail("unclosed ring %d", n)
		}
	case len(p.atoms) == 0:
		return errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "SMILES contains no atoms")
	}
	return nil
}

func (p *smilesParser) setBond(order BondOrder) error {
	if p.hasBond {
		return p.fail("consecutive bond symbols")
	}
	if p.prev < 0 {
		return p.fail("bond symbol without a preceding atom")
	}
	p.pending = order
	p.hasBond = true
	p.pos++
	return nil
}

func (p *smilesParser) takeBond() (BondOrder, bool) {
	order, ok := p.pending, p.hasBond
	p.pending, p.hasBond = 0, false
	return order, ok
}

func (p *smilesParser) addAtom(a Atom) error {
	idx := len(p.atoms)
	p.atoms = append(p.atoms, a)
	order, explicit := p.takeBond()
	if p.prev >= 0 {
		if !explicit {
			order = p.implicitOrder(p.prev, idx)
		}
		if err := p.connect(p.prev, idx, order); err != nil {
			return err
		}
	}
	p.prev = idx
	return nil
}

func (p *smilesParser) implicitOrder(a, b int) BondOrder {
	if p.atoms[a].Aromatic && p.atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) connect(a, b int, order BondOrder) error {
	if a == b {
		return p.fail("atom %d bonded to itself", a)
	}
	key := bondKey(a, b)
	if p.bondIndex[key] {
		return p.fail("duplicate bond between atoms %d and %d", a, b)
	}
	p.bondIndex[key] = true
	p.bonds = append(p.bonds, Bond{Begin: a, End: b, Order: order})
	return nil
}

func (p *smilesParser) ringClosure(n int) error {
	if p.prev < 0 {
		return p.fail("ring bond %d without a preceding atom", n)
	}
	order, explicit := p.takeBond()
	open, exists := p.rings[n]
	if !exists {
		if !explicit {
			order = 0
		}
		p.rings[n] = ringOpening{atom: p.prev, order: order}
		return nil
	}
	delete(p.rings, n)
	switch {
	case explicit && open.order != 0 && open.order != order:
		return p.fail("conflicting bond orders on ring bond %d", n)
	case !explicit && open.order != 0:
		order = open.order
	case !explicit:
		order = p.implicitOrder(open.atom, p.prev)
	}
	return p.connect(open.atom, p.prev, order)
}

// parseOrganicAtom reads an organic-subset atom at runes[i].
func parseOrganicAtom(runes []rune, i int) (Atom, int, bool) {
	if i+1 < len(runes) {
		two := string(runes[i : i+2])
		if two == "Cl" || two == "Br" {
			return Atom{Element: two}, 2, true
		}
	}
	switch ch := runes[i]; ch {
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		return Atom{Element: string(ch)}, 1, true
	case 'b', 'c', 'n', 'o', 'p', 's':
		return Atom{Element: strings.ToUpper(string(ch)), Aromatic: true}, 1, true
	}
	return Atom{}, 0, false
}

// parseBracketAtom parses the content of a bracket atom:
// isotope? symbol chirality? hcount? charge? class?
func parseBracketAtom(content string) (Atom, error) {
	runes := []rune(content)
	i := 0
	var a Atom
	a.NoImplicit = true

	start := i
	for i < len(runes) && unicode.IsDigit(runes[i]) {
		i++
	}
	if i > start {
		a.Isotope, _ = strconv.Atoi(string(runes[start:i]))
	}

	if i >= len(runes) {
		return a, fmt.Errorf("bracket atom %q has no element", content)
	}
	switch {
	case unicode.IsUpper(runes[i]):
		sym := string(runes[i])
		if i+1 < len(runes) && unicode.IsLower(runes[i+1]) && KnownElement(sym+string(runes[i+1])) {
			sym += string(runes[i+1])
		}
		a.Element = sym
		i += len(sym)
	case unicode.IsLower(runes[i]):
		sym := string(runes[i])
		if i+1 < len(runes) && unicode.IsLower(runes[i+1]) && (sym+string(runes[i+1]) == "se" || sym+string(runes[i+1]) == "as") {
			sym += string(runes[i+1])
		}
		a.Element = strings.ToUpper(sym[:1]) + sym[1:]
		a.Aromatic = true
		if !aromaticCapable[a.Element] {
			return a, fmt.Errorf("element %q cannot be aromatic", sym)
		}
		i += len(sym)
	default:
		return a, fmt.Errorf("bracket atom %q has no element", content)
	}
	if !KnownElement(a.Element) {
		return a, fmt.Errorf("unknown element %q", a.Element)
	}

	// Chirality: @, @@, or @TH1-style classes.
	if i < len(runes) && runes[i] == '@' {
		for i < len(runes) && runes[i] == '@' {
			i++
		}
		if i+1 < len(runes) {
			switch string(runes[i : i+2]) {
			case "TH", "AL", "SP", "TB", "OH":
				i += 2
				for i < len(runes) && unicode.IsDigit(runes[i]) {
					i++
				}
			}
		}
	}

	if i < len(runes) && runes[i] == 'H' {
		i++
		a.ExplicitH = 1
		start := i
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			i++
		}
		if i > start {
			a.ExplicitH, _ = strconv.Atoi(string(runes[start:i]))
		}
	}

	if i < len(runes) && (runes[i] == '+' || runes[i] == '-') {
		sign := 1
		if runes[i] == '-' {
			sign = -1
		}
		sym := runes[i]
		i++
		count := 1
		start := i
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			i++
		}
		if i > start {
			count, _ = strconv.Atoi(string(runes[start:i]))
		} else {
			for i < len(runes) && runes[i] == sym {
				count++
				i++
			}
		}
		a.Charge = sign * count
	}

	if i < len(runes) && runes[i] == ':' {
		i++
		start := i
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			i++
		}
		if i == start {
			return a, fmt.Errorf("atom class in %q has no digits", content)
		}
		a.MapNum, _ = strconv.Atoi(string(runes[start:i]))
	}

	if i != len(runes) {
		return a, fmt.Errorf("unexpected %q in bracket atom %q", string(runes[i:]), content)
	}
	return a, nil
}

//Personal.AI order the ending
