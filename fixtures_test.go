package mapping

import (
	"fmt"
	"reflect"
)

// Test structs shared across the package tests
type Source struct {
	ID int
}

type Target struct {
	Name string
}

type ImmutableTarget struct {
	name string
}

func (t ImmutableTarget) Name() string { return t.name }

func sourceToTarget(src Source, dst *Target) error {
	dst.Name = fmt.Sprintf("T#%d", src.ID)
	return nil
}

func sourceToImmutable(src Source) (ImmutableTarget, error) {
	return ImmutableTarget{name: fmt.Sprintf("T#%d", src.ID)}, nil
}

// Animal <- Dog <- Puppy, linked through leading embedded fields.
type Animal struct {
	Name string
}

type Dog struct {
	Animal
	Breed string
}

type Puppy struct {
	*Dog
	Age int
}

type AnimalDTO struct {
	Label string
}

func animalToDTO(a *Animal, dto *AnimalDTO) {
	dto.Label = "animal:" + a.Name
}

func dogToDTO(d *Dog, dto *AnimalDTO) {
	dto.Label = "dog:" + d.Name + ":" + d.Breed
}

var (
	animalDTOKey = KeyFor[Animal, AnimalDTO]("")
	dogDTOKey    = KeyFor[Dog, AnimalDTO]("")
	puppyDTOKey  = KeyFor[Puppy, AnimalDTO]("")
)

// lazyAnimal stands in for an Animal the way an ORM proxy would.
type lazyAnimal struct {
	loaded *Animal
}

func (l *lazyAnimal) ProxiedType() reflect.Type { return reflect.TypeFor[Animal]() }

func (l *lazyAnimal) Unproxy() (any, error) { return l.loaded, nil }

// lazyTarget stands in for a Target that is loaded on demand.
type lazyTarget struct {
	loaded *Target
	err    error
}

func (l *lazyTarget) ProxiedType() reflect.Type { return reflect.TypeFor[Target]() }

func (l *lazyTarget) Unproxy() (any, error) { return l.loaded, l.err }
