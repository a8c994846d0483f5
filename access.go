// Access filtering

package main

// FilteredCatalog - The catalog view a subject is authorized to see.
// Serializing it only ever emits public classroom data, since the
// Classroom marshaller strips the allow lists.
type FilteredCatalog struct {
	Classrooms []Classroom `json:"classrooms"`
}

// FilterCatalogFor computes the catalog view for a subject.
// Globally allowed subjects see every classroom. Everyone else
// sees exactly the classrooms whose allow list names them.
// An empty subject sees nothing. Pure function, safe to call
// concurrently.
func FilterCatalogFor(subjectId string, catalog *Catalog) FilteredCatalog {
	result := FilteredCatalog{
		Classrooms: make([]Classroom, 0, len(catalog.Classrooms)),
	}

	if subjectId == "" {
		return result // Unauthenticated callers see an empty catalog
	}

	if catalog.GlobalAllow[subjectId] {
		result.Classrooms = append(result.Classrooms, catalog.Classrooms...)
		return result
	}

	for _, room := range catalog.Classrooms {
		if room.Allow[subjectId] {
			result.Classrooms = append(result.Classrooms, room)
		}
	}

	return result
}

// CanAccessClassroom reports whether the subject may see the classroom.
// Defined in terms of FilterCatalogFor, so the index endpoint and the
// media path can never disagree about who sees what.
func CanAccessClassroom(subjectId string, classroomId string, catalog *Catalog) bool {
	for _, room := range FilterCatalogFor(subjectId, catalog).Classrooms {
		if room.ID == classroomId {
			return true
		}
	}

	return false
}
