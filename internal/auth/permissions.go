package auth

// Permission is a fine-grained capability key.
type Permission string

const (
	PermContentCreate    Permission = "content.create"
	PermContentReadAny   Permission = "content.read.any"
	PermContentEditOwn   Permission = "content.edit.own"
	PermContentEditAny   Permission = "content.edit.any"
	PermContentReview    Permission = "content.review"
	PermContentDeleteOwn Permission = "content.delete.own"
	PermContentDeleteAny Permission = "content.delete.any"
	PermContentTrash     Permission = "content.trash"
	PermUsersManage      Permission = "users.manage"
	PermAuditRead        Permission = "audit.read"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermContentCreate, PermContentReadAny, PermContentEditOwn, PermContentEditAny,
		PermContentReview, PermContentDeleteOwn, PermContentDeleteAny, PermContentTrash,
		PermUsersManage, PermAuditRead,
	},
	RoleAuthor: {
		PermContentCreate, PermContentEditOwn, PermContentDeleteOwn,
	},
}

// PermissionsFor lists the capabilities granted to role.
func PermissionsFor(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
