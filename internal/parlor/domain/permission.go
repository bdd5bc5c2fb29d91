package domain

import "strings"

// Permission is a single capability bit. The set is closed: permissions are
// defined here and nowhere else, and roles carry a bitwise OR of them.
type Permission uint64

const (
	PermFollow Permission = 1 << iota
	PermComment
	PermUpload
	PermModerate
	PermAdminister
)

// AllPermissions is the bitmask granted to the administrator role.
const AllPermissions = PermFollow | PermComment | PermUpload | PermModerate | PermAdminister

var permissionNames = map[Permission]string{
	PermFollow:     "follow",
	PermComment:    "comment",
	PermUpload:     "upload",
	PermModerate:   "moderate",
	PermAdminister: "administer",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}

	// Composite masks render as a + separated list.
	var parts []string
	for bit := PermFollow; bit <= PermAdminister; bit <<= 1 {
		if p&bit != 0 {
			parts = append(parts, permissionNames[bit])
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}
