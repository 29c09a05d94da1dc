package authz

// Allows reports whether the restriction permits the space. A nil restriction
// permits everything. An active restriction with an empty allow-list permits
// nothing; absent and empty are distinct states.
func (r *ScopeRestriction) Allows(spaceID int64) bool {
	if r == nil {
		return true
	}
	return r.AllowedSpaceIDs.Contains(spaceID)
}

// Apply intersects the restriction into a visibility set. The input set is
// not modified. With a nil restriction the result is a copy of the input.
func (r *ScopeRestriction) Apply(set SpaceSet) SpaceSet {
	if r == nil {
		return set.Clone()
	}
	return set.Intersect(r.AllowedSpaceIDs)
}
