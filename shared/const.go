package shared

const (
	UserID    = "user_id"
	UserRole  = "user_role"
	SessionID = "session_id"

	RoleUser  = "user"
	RoleAdmin = "admin"

	SortNewest = "newest"
	SortOldest = "oldest"
	SortViews  = "views"
)
