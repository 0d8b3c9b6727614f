// Package mapping maps values between types using explicitly registered mapping functions.
//
// A Mapper keeps a registry of mapping functions keyed by source type, target type and
// mapping name. Lookups that miss fall back to the supertypes of the source type, and the
// result is remembered so repeated lookups stay O(1).
//
// # Basic Usage
//
//	m := mapping.New()
//	_, err := m.Register("", func(u *User, dto *UserDTO) error {
//	    dto.Name = u.Name
//	    return nil
//	})
//	dto, err := mapping.MapTo[*UserDTO](m, user)
//
// # Function Shapes
//
// A mapping function has one of four shapes, decided once at registration:
//  1. func(S, *T) or func(S, *T) error mutates a target
//  2. func(S, *T, *mapping.Context) [error] mutates a target and reads the Context
//  3. func(S) T or func(S) (T, error) produces a target
//  4. func(S, *mapping.Context) T or (T, error) produces a target and reads the Context
//
// Pointer levels are not part of the key: S and *S select the same mapping. Mutating
// mappings can overwrite an existing instance (overlay mapping); producing mappings can
// only create new ones.
//
// # Named Mappings
//
// Several mappings may exist for one pair of types under different names:
//
//	m.Register("summary", summarize)
//	out, err := m.Map(user, reflect.TypeFor[UserDTO](), mapping.WithMappingName("summary"))
//
// # Supertypes
//
// A struct whose first field is an exported embedded struct is treated as a subtype of
// that struct. Further relations are declared with Mapper.DeclareSupertype. A mapping
// registered for a supertype serves every subtype without one of its own.
//
// # Context
//
// A Context is an ordered bag of values passed to mappings that accept it. During bulk
// mapping it also reports the collection being mapped and the current index.
//
// # Thread Safety
//
// The Mapper is safe for concurrent use. Registration may interleave with mapping.
// Internals use copy-on-write registries and a generation-tagged lookup cache.
// A Context belongs to a single mapping operation.
package mapping
