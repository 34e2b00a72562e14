package config

import (
	"fmt"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/ua"
)

// BuildSpace creates the address space the nodes declare.
func (f *File) BuildSpace() (*address.Space, error) {
	space := address.NewSpace()

	for i, n := range f.Nodes {
		v, err := n.build()
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}

		if err := space.Add(v); err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
	}

	return space, nil
}

func (n Node) build() (address.Variable, error) {
	if n.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidNode)
	}

	name := n.Name
	if name == "" {
		name = n.ID
	}

	accessLevel, userAccessLevel, err := n.accessLevels()
	if err != nil {
		return nil, err
	}

	id := ua.NodeID(n.ID)

	switch n.Type {
	case NodeTypeScalar:
		dt, err := parseDataType(n.DataType)
		if err != nil {
			return nil, err
		}

		if dt == ua.DataTypeStructure {
			return nil, fmt.Errorf("%w: scalar %s cannot be a Structure",
				ErrInvalidNode, n.ID)
		}

		slot := address.NewValueSlot(id, name, dt).WithValueRank(valueRank(n.ValueRank))
		slot.SetAccessLevels(accessLevel, userAccessLevel)

		return slot, nil

	case NodeTypeVector:
		if len(n.Children) > 0 {
			return nil, fmt.Errorf("%w: vector %s has fixed children",
				ErrInvalidNode, n.ID)
		}

		vector := address.NewVector(id, name)
		vector.SetAccessLevels(accessLevel, userAccessLevel)

		return vector, nil

	case NodeTypeComposite:
		fields, err := n.fields()
		if err != nil {
			return nil, err
		}

		composite := address.NewCompositeVariable(id, name, fields...)
		composite.SetAccessLevels(accessLevel, userAccessLevel)

		return composite, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidNode, n.Type)
	}
}

func (n Node) fields() ([]ua.FieldDescriptor, error) {
	if len(n.Children) == 0 {
		return nil, fmt.Errorf("%w: composite %s needs children",
			ErrInvalidNode, n.ID)
	}

	seen := make(map[string]bool, len(n.Children))
	fields := make([]ua.FieldDescriptor, 0, len(n.Children))

	for _, c := range n.Children {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: child of %s has no name",
				ErrInvalidNode, n.ID)
		}

		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicated child %s.%s",
				ErrInvalidNode, n.ID, c.Name)
		}
		seen[c.Name] = true

		dt, err := parseDataType(c.DataType)
		if err != nil {
			return nil, err
		}

		if dt == ua.DataTypeStructure {
			return nil, fmt.Errorf("%w: child %s.%s cannot be a Structure",
				ErrInvalidNode, n.ID, c.Name)
		}

		fields = append(fields, ua.FieldDescriptor{
			Name:      c.Name,
			DataType:  dt,
			ValueRank: valueRank(c.ValueRank),
		})
	}

	return fields, nil
}

func (n Node) accessLevels() (ua.AccessLevel, ua.AccessLevel, error) {
	parse := func(s string) (ua.AccessLevel, error) {
		if s == "" {
			return ua.AccessLevelCurrentRead, nil
		}

		level, err := ua.ParseAccessLevel(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidNode, n.ID, err)
		}

		return level, nil
	}

	accessLevel, err := parse(n.AccessLevel)
	if err != nil {
		return 0, 0, err
	}

	userAccessLevel, err := parse(n.UserAccessLevel)
	if err != nil {
		return 0, 0, err
	}

	return accessLevel, userAccessLevel, nil
}

func parseDataType(s string) (ua.DataType, error) {
	dt, err := ua.ParseDataType(s)
	if err != nil {
		return ua.DataTypeUnknown, fmt.Errorf("%w: %w", ErrInvalidNode, err)
	}

	return dt, nil
}

// valueRank maps the YAML value rank, where 0 means scalar, to the node's.
func valueRank(rank int) int {
	if rank == 0 {
		return ua.ValueRankScalar
	}

	return rank
}
