package model

import (
	"sort"

	"github.com/google/uuid"
)

// NoiseLabel marks an id that belongs to no cluster.
const NoiseLabel = -1

// Assignment maps ids to integer cluster labels.
type Assignment map[uuid.UUID]int

// Labels returns the distinct non-noise labels in ascending order.
func (a Assignment) Labels() []int {
	seen := map[int]bool{}
	labels := []int{}
	for _, l := range a {
		if l == NoiseLabel || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

// Members returns the ids carrying label, in the order given by order.
func (a Assignment) Members(label int, order []uuid.UUID) []uuid.UUID {
	members := []uuid.UUID{}
	for _, id := range order {
		if l, ok := a[id]; ok && l == label {
			members = append(members, id)
		}
	}
	return members
}

// Label returns the label of id, NoiseLabel if id is not assigned.
func (a Assignment) Label(id uuid.UUID) int {
	if l, ok := a[id]; ok {
		return l
	}
	return NoiseLabel
}
