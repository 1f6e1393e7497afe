package genetics

// Kin is the pedigree view of an individual needed for relationship checks.
type Kin interface {
	KinID() int64
	ParentIDs() (int64, int64)
	InbreedingCoefficient() float64
}

// Relationship returns the coefficient of relationship between two
// individuals: 0.5 for full siblings or parent and offspring, 0.25 for half
// siblings, and 0 otherwise. Deeper pedigrees are not traced.
func Relationship(a, b Kin) float64 {
	a1, a2 := a.ParentIDs()
	b1, b2 := b.ParentIDs()
	aID, bID := a.KinID(), b.KinID()

	if aID != 0 && (aID == b1 || aID == b2) {
		return 0.5
	}
	if bID != 0 && (bID == a1 || bID == a2) {
		return 0.5
	}
	if a1 != 0 && a2 != 0 && ((a1 == b1 && a2 == b2) || (a1 == b2 && a2 == b1)) {
		return 0.5
	}
	if shares(a1, b1, b2) || shares(a2, b1, b2) {
		return 0.25
	}
	return 0
}

// Inbreeding returns Wright's coefficient for offspring of the two parents,
// clamped to [0, 1].
func Inbreeding(a, b Kin) float64 {
	f := 0.5 * (1 + a.InbreedingCoefficient()) * (1 + b.InbreedingCoefficient()) * Relationship(a, b)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func shares(id, x, y int64) bool {
	return id != 0 && (id == x || id == y)
}
