package dto

// CreateDepartmentRequest captures POST /departments payload.
type CreateDepartmentRequest struct {
	Name string `json:"name"`
}

// CreateStaffRequest captures POST /staff payload. Presence checks happen in the directory service.
type CreateStaffRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Department string  `json:"department"`
	Phone      *string `json:"phone,omitempty"`
}

// RegisterRequest captures POST /auth/register payload.
type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone,omitempty"`
}

// UnreadCountResponse reports the number of unread notifications.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}
