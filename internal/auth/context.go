// Package auth describes the caller of a core operation. Identity and
// permissions are owned elsewhere; the core only reads this value.
package auth

// Role is the caller's role as issued by the identity service.
type Role string

const (
	RoleStudent       Role = "student"
	RoleFacultyOffice Role = "faculty_office"
	RoleDormAdmin     Role = "dorm_admin"
	RoleSuperAdmin    Role = "super_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFacultyOffice, RoleDormAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// RequestContext is the caller identity passed explicitly into every core
// operation.
type RequestContext struct {
	UserID      int64
	Role        Role
	FacultyID   *int64
	DormitoryID *int64
}

// IsSuperAdmin reports whether the caller bypasses scoping.
func (rc RequestContext) IsSuperAdmin() bool {
	return rc.Role == RoleSuperAdmin
}

// IsStudent reports whether the caller acts as a student.
func (rc RequestContext) IsStudent() bool {
	return rc.Role == RoleStudent
}

// Owns reports whether the caller is the student who owns a record.
func (rc RequestContext) Owns(userID int64) bool {
	return rc.Role == RoleStudent && rc.UserID == userID
}

// CanManageDormitory reports whether the caller administers dormitoryID.
func (rc RequestContext) CanManageDormitory(dormitoryID int64) bool {
	if rc.IsSuperAdmin() {
		return true
	}
	return rc.Role == RoleDormAdmin && rc.DormitoryID != nil && *rc.DormitoryID == dormitoryID
}

// CanReviewFaculty reports whether the caller reviews applications of facultyID.
func (rc RequestContext) CanReviewFaculty(facultyID *int64) bool {
	if rc.IsSuperAdmin() {
		return true
	}
	return rc.Role == RoleFacultyOffice && rc.FacultyID != nil && facultyID != nil && *rc.FacultyID == *facultyID
}
