package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Family is a context dimension. The three base families each carry a closed
// set of values; hybrid contexts combine values from several families.
type Family string

const (
	FamilyScientific    Family = "scientific"
	FamilySymbolic      Family = "symbolic"
	FamilyPhysicalState Family = "physical-state"
	FamilyHybrid        Family = "hybrid"
)

// Scientific lens values.
const (
	ValueEmpirical    = "empirical"
	ValueTheoretical  = "theoretical"
	ValueExperimental = "experimental"
)

// Symbolic lens values.
const (
	ValueArchetypal = "archetypal"
	ValueCultural   = "cultural"
	ValuePersonal   = "personal"
)

// Physical-state lens values.
const (
	ValuePhase     = "phase"
	ValueFlow      = "flow"
	ValueCoherence = "coherence"
)

// hybridSeparator joins the canonical parts of a hybrid context value.
const hybridSeparator = "+"

var familyValues = map[Family][]string{
	FamilyScientific:    {ValueEmpirical, ValueTheoretical, ValueExperimental},
	FamilySymbolic:      {ValueArchetypal, ValueCultural, ValuePersonal},
	FamilyPhysicalState: {ValuePhase, ValueFlow, ValueCoherence},
}

// BaseFamilies lists the taxonomy dimensions in expansion order.
func BaseFamilies() []Family {
	return []Family{FamilyScientific, FamilySymbolic, FamilyPhysicalState}
}

// AllFamilies lists every grouping bucket, hybrid last.
func AllFamilies() []Family {
	return []Family{FamilyScientific, FamilySymbolic, FamilyPhysicalState, FamilyHybrid}
}

// Values returns the closed value set of a base family, or nil.
func (f Family) Values() []string {
	vals := familyValues[f]
	if vals == nil {
		return nil
	}
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

// IsBase reports whether f is one of the three taxonomy dimensions.
func (f Family) IsBase() bool {
	_, ok := familyValues[f]
	return ok
}

// ParseFamily resolves a family name. "water" is accepted as the legacy name of
// the physical-state lens.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(FamilyScientific):
		return FamilyScientific, nil
	case string(FamilySymbolic):
		return FamilySymbolic, nil
	case string(FamilyPhysicalState), "physical_state", "water":
		return FamilyPhysicalState, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}

// Context is one point of the taxonomy attachable to a node. It is a value type:
// two contexts are equal when family and value are equal, so a Context can key a
// map directly. For hybrid contexts Value holds the canonical, sorted list of
// base parts joined with "+".
type Context struct {
	Family Family
	Value  string
}

// NewContext builds a base context, rejecting values outside the taxonomy.
func NewContext(family Family, value string) (Context, error) {
	vals, ok := familyValues[family]
	if !ok {
		return Context{}, fmt.Errorf("%w: family %q", ErrInvalidContext, family)
	}
	for _, v := range vals {
		if v == value {
			return Context{Family: family, Value: value}, nil
		}
	}
	return Context{}, fmt.Errorf("%w: %q is not a %s value", ErrInvalidContext, value, family)
}

// NewHybrid combines base contexts into a single hybrid context. Parts are
// deduplicated and sorted so equal combinations compare equal.
func NewHybrid(parts ...Context) (Context, error) {
	seen := make(map[Context]struct{}, len(parts))
	uniq := make([]Context, 0, len(parts))
	for _, p := range parts {
		if !p.Family.IsBase() {
			return Context{}, fmt.Errorf("%w: hybrid part %q must be a base context", ErrInvalidContext, p)
		}
		if _, err := NewContext(p.Family, p.Value); err != nil {
			return Context{}, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		uniq = append(uniq, p)
	}
	if len(uniq) < 2 {
		return Context{}, fmt.Errorf("%w: hybrid needs at least two distinct parts", ErrInvalidContext)
	}
	sortContexts(uniq)
	keys := make([]string, len(uniq))
	for i, p := range uniq {
		keys[i] = p.String()
	}
	return Context{Family: FamilyHybrid, Value: strings.Join(keys, hybridSeparator)}, nil
}

// MustContext is NewContext for package-level tables.
func MustContext(family Family, value string) Context {
	c, err := NewContext(family, value)
	if err != nil {
		panic(err)
	}
	return c
}

// IsHybrid reports whether c combines several base contexts.
func (c Context) IsHybrid() bool {
	return c.Family == FamilyHybrid
}

// Parts returns the base contexts c is made of: c itself for a base context,
// the decoded components for a hybrid.
func (c Context) Parts() []Context {
	if !c.IsHybrid() {
		return []Context{c}
	}
	raw := strings.Split(c.Value, hybridSeparator)
	parts := make([]Context, 0, len(raw))
	for _, r := range raw {
		fam, val, ok := strings.Cut(r, ":")
		if !ok {
			continue
		}
		parts = append(parts, Context{Family: Family(fam), Value: val})
	}
	return parts
}

// Families returns the distinct base families touched by c.
func (c Context) Families() []Family {
	var out []Family
	seen := make(map[Family]bool, 3)
	for _, p := range c.Parts() {
		if !seen[p.Family] {
			seen[p.Family] = true
			out = append(out, p.Family)
		}
	}
	return out
}

// String renders the canonical form, e.g. "symbolic:cultural" or
// "hybrid:scientific:empirical+symbolic:cultural".
func (c Context) String() string {
	return string(c.Family) + ":" + c.Value
}

// ParseContext parses the canonical string form produced by String. The legacy
// "water:" prefix is accepted for physical-state contexts.
func ParseContext(s string) (Context, error) {
	s = strings.TrimSpace(s)
	fam, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return Context{}, fmt.Errorf("%w: %q", ErrInvalidContext, s)
	}
	if strings.EqualFold(fam, string(FamilyHybrid)) {
		raw := strings.Split(rest, hybridSeparator)
		parts := make([]Context, 0, len(raw))
		for _, r := range raw {
			p, err := ParseContext(r)
			if err != nil {
				return Context{}, err
			}
			if p.IsHybrid() {
				return Context{}, fmt.Errorf("%w: nested hybrid in %q", ErrInvalidContext, s)
			}
			parts = append(parts, p)
		}
		return NewHybrid(parts...)
	}
	family, err := ParseFamily(fam)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %q", ErrInvalidContext, s)
	}
	return NewContext(family, strings.ToLower(rest))
}

// Validate reports whether c is a taxonomy member or a canonical hybrid.
func (c Context) Validate() error {
	parsed, err := ParseContext(c.String())
	if err != nil {
		return err
	}
	if parsed != c {
		return fmt.Errorf("%w: %q is not in canonical form", ErrInvalidContext, c.String())
	}
	return nil
}

// MarshalText lets contexts key JSON objects and travel as plain strings.
func (c Context) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (c *Context) UnmarshalText(b []byte) error {
	parsed, err := ParseContext(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Taxonomy returns every base context in expansion order: families in
// BaseFamilies order, values in declaration order.
func Taxonomy() []Context {
	out := make([]Context, 0, 9)
	for _, f := range BaseFamilies() {
		for _, v := range familyValues[f] {
			out = append(out, Context{Family: f, Value: v})
		}
	}
	return out
}

// taxonomyRank orders base contexts by their position in Taxonomy; hybrids sort
// after all base contexts.
var taxonomyRank = func() map[Context]int {
	m := make(map[Context]int, 9)
	for i, c := range Taxonomy() {
		m[c] = i
	}
	return m
}()

func contextLess(a, b Context) bool {
	ra, aBase := taxonomyRank[a]
	rb, bBase := taxonomyRank[b]
	switch {
	case aBase && bBase:
		return ra < rb
	case aBase != bBase:
		return aBase
	}
	return a.Value < b.Value
}

func sortContexts(cs []Context) {
	sort.Slice(cs, func(i, j int) bool { return contextLess(cs[i], cs[j]) })
}

// normalizeContexts returns a sorted, deduplicated copy of cs.
func normalizeContexts(cs []Context) []Context {
	if len(cs) == 0 {
		return nil
	}
	seen := make(map[Context]struct{}, len(cs))
	out := make([]Context, 0, len(cs))
	for _, c := range cs {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sortContexts(out)
	return out
}
