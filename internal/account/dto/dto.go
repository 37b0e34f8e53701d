package dto

type RegisterDTO struct {
	Username string `json:"username" form:"username" validate:"required,alphanum,min=3,max=20"`
	Email    string `json:"email"    form:"email"    validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
	FullName string `json:"fullName" form:"fullName" validate:"required"`
}

type LoginDTO struct {
	// Identifier matches either username or email.
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password"   validate:"required"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type UpdateProfileDTO struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
}
