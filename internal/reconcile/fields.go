package reconcile

import (
	"sort"
	"strings"

	"kc-steward.io/steward/internal/domain"
)

// fieldKind distinguishes scalar from set-valued comparison fields.
type fieldKind int

const (
	kindScalar fieldKind = iota
	kindSet
)

type fieldSpec struct {
	name string
	kind fieldKind
}

// comparisonFields is the fixed allowlist per category. Anything an entity reports
// outside this list is ignored, except the dynamic client mapper fields.
var comparisonFields = map[domain.Category][]fieldSpec{
	domain.CategoryRoles: {
		{domain.FieldDescription, kindScalar},
		{domain.FieldComposite, kindScalar},
		{domain.FieldClientRole, kindScalar},
		{domain.FieldAttributes, kindSet},
		{domain.FieldCompositeRoles, kindSet},
	},
	domain.CategoryClients: {
		{domain.FieldProtocol, kindScalar},
		{domain.FieldEnabled, kindScalar},
		{domain.FieldPublicClient, kindScalar},
		{domain.FieldBearerOnly, kindScalar},
		{domain.FieldServiceAccountsEnabled, kindScalar},
		{domain.FieldDefaultClientScopes, kindSet},
		{domain.FieldOptionalClientScopes, kindSet},
	},
	domain.CategoryGroups: {
		{domain.FieldRealmRoles, kindSet},
		{domain.FieldClientRoles, kindSet},
		{domain.FieldAttributes, kindSet},
		{domain.FieldSubGroups, kindSet},
	},
	domain.CategoryUsers: {
		{domain.FieldEnabled, kindScalar},
		{domain.FieldEmail, kindScalar},
		{domain.FieldEmailVerified, kindScalar},
		{domain.FieldFirstName, kindScalar},
		{domain.FieldLastName, kindScalar},
		{domain.FieldRealmRoles, kindSet},
		{domain.FieldGroups, kindSet},
		{domain.FieldRequiredActions, kindSet},
	},
}

// FieldDiff is the outcome of comparing two entities sharing a natural key.
// Source and Destination hold exactly the fields listed in Fields.
type FieldDiff struct {
	Fields      []string
	Source      map[string]any
	Destination map[string]any
	SetDeltas   map[string]domain.SetDelta
}

// Empty reports whether no field differs.
func (d FieldDiff) Empty() bool {
	return len(d.Fields) == 0
}

// DiffFields compares the allowlisted fields of a (source) and b (destination).
//
// Scalars compare strictly: an absent value differs from "" and from false.
// Sets compare order-independently and differ iff the symmetric difference is
// non-empty; a set absent on one side counts as empty. A field absent on both
// sides is never reported.
func DiffFields(category domain.Category, a, b domain.Entity) FieldDiff {
	fa, fb := a.Fields(), b.Fields()
	diff := FieldDiff{
		Source:      make(map[string]any),
		Destination: make(map[string]any),
		SetDeltas:   make(map[string]domain.SetDelta),
	}

	for _, spec := range specsFor(category, fa, fb) {
		switch spec.kind {
		case kindScalar:
			av, aok := fa.Scalars[spec.name]
			bv, bok := fb.Scalars[spec.name]
			if !aok && !bok {
				continue
			}
			if aok == bok && av == bv {
				continue
			}
			diff.Fields = append(diff.Fields, spec.name)
			diff.Source[spec.name] = scalarValue(av, aok)
			diff.Destination[spec.name] = scalarValue(bv, bok)
		case kindSet:
			as, aok := fa.Sets[spec.name]
			bs, bok := fb.Sets[spec.name]
			if !aok && !bok {
				continue
			}
			delta := SetDifference(as, bs)
			if delta.Empty() {
				continue
			}
			diff.Fields = append(diff.Fields, spec.name)
			diff.Source[spec.name] = sortedCopy(as)
			diff.Destination[spec.name] = sortedCopy(bs)
			diff.SetDeltas[spec.name] = delta
		}
	}

	sort.Strings(diff.Fields)
	return diff
}

// specsFor returns the static allowlist plus, for clients, the mapper fields
// present on either side, in a stable order.
func specsFor(category domain.Category, fa, fb domain.FieldSet) []fieldSpec {
	specs := comparisonFields[category]
	if category != domain.CategoryClients {
		return specs
	}

	dynamic := make(map[string]struct{})
	for _, fs := range []domain.FieldSet{fa, fb} {
		for name := range fs.Sets {
			if strings.HasPrefix(name, domain.MapperFieldPrefix) {
				dynamic[name] = struct{}{}
			}
		}
	}
	if len(dynamic) == 0 {
		return specs
	}

	names := make([]string, 0, len(dynamic))
	for name := range dynamic {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]fieldSpec, 0, len(specs)+len(names))
	out = append(out, specs...)
	for _, name := range names {
		out = append(out, fieldSpec{name: name, kind: kindSet})
	}
	return out
}

// SetDifference partitions two string sets. Duplicates collapse.
func SetDifference(source, destination []string) domain.SetDelta {
	inSource := toSet(source)
	inDest := toSet(destination)

	delta := domain.SetDelta{
		OnlyInSource:      []string{},
		OnlyInDestination: []string{},
		Common:            []string{},
	}
	for v := range inSource {
		if _, ok := inDest[v]; ok {
			delta.Common = append(delta.Common, v)
		} else {
			delta.OnlyInSource = append(delta.OnlyInSource, v)
		}
	}
	for v := range inDest {
		if _, ok := inSource[v]; !ok {
			delta.OnlyInDestination = append(delta.OnlyInDestination, v)
		}
	}
	sort.Strings(delta.OnlyInSource)
	sort.Strings(delta.OnlyInDestination)
	sort.Strings(delta.Common)
	return delta
}

func toSet(values []string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func sortedCopy(values []string) []string {
	out := make([]string, 0, len(values))
	for v := range toSet(values) {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func scalarValue(v any, present bool) any {
	if !present {
		return nil
	}
	return v
}
