package state

// RelationType tags a relation. The set is closed; ParentChild is the only
// structural type, every other type is semantic association.
type RelationType string

const (
	RelationParentChild  RelationType = "parent-child"
	RelationSupports     RelationType = "supports"
	RelationContradicts  RelationType = "contradicts"
	RelationPrerequisite RelationType = "prerequisite"
	RelationElaborates   RelationType = "elaborates"
	RelationReferences   RelationType = "references"
	RelationConclusion   RelationType = "conclusion"
	RelationCustom       RelationType = "custom"
)

// RelationTypes lists every valid relation type in declaration order
var RelationTypes = []RelationType{
	RelationParentChild,
	RelationSupports,
	RelationContradicts,
	RelationPrerequisite,
	RelationElaborates,
	RelationReferences,
	RelationConclusion,
	RelationCustom,
}

// IsValid checks if the relation type is in the closed set
func (t RelationType) IsValid() bool {
	switch t {
	case RelationParentChild, RelationSupports, RelationContradicts, RelationPrerequisite,
		RelationElaborates, RelationReferences, RelationConclusion, RelationCustom:
		return true
	default:
		return false
	}
}

// IsStructural reports whether the relation encodes node ownership
func (t RelationType) IsStructural() bool {
	switch t {
	case RelationParentChild:
		return true
	case RelationSupports, RelationContradicts, RelationPrerequisite,
		RelationElaborates, RelationReferences, RelationConclusion, RelationCustom:
		return false
	default:
		return false
	}
}

// Describe returns the phrase used when the source of a relation of this
// type is injected as context
func (t RelationType) Describe() string {
	switch t {
	case RelationParentChild:
		return "parent node"
	case RelationSupports:
		return "supporting node"
	case RelationContradicts:
		return "contradicting node"
	case RelationPrerequisite:
		return "prerequisite node"
	case RelationElaborates:
		return "elaborating node"
	case RelationReferences:
		return "referenced node"
	case RelationConclusion:
		return "concluding node"
	case RelationCustom:
		return "related node"
	default:
		return "related node"
	}
}

// relationAliases maps legacy wire names onto the closed set
var relationAliases = map[string]RelationType{
	"parent_child": RelationParentChild,
	"reference":    RelationReferences,
	"dependency":   RelationPrerequisite,
	"extension":    RelationElaborates,
}

// ParseRelationType converts a wire string into a RelationType, accepting
// the legacy names in relationAliases.
func ParseRelationType(s string) (RelationType, bool) {
	if t, ok := relationAliases[s]; ok {
		return t, true
	}
	t := RelationType(s)
	return t, t.IsValid()
}

// String returns the string representation of the relation type
func (t RelationType) String() string {
	return string(t)
}
