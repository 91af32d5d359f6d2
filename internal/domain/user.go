package domain

import "time"

// VerificationSentinel es el valor de verification_token cuando no hay OTP pendiente.
const VerificationSentinel = "000000"

type User struct {
	ID                         int64     `json:"id"`
	Username                   string    `json:"username"`
	Email                      string    `json:"email"`
	PasswordHash               string    `json:"-"`
	FirstName                  string    `json:"firstName"`
	LastName                   string    `json:"lastName"`
	Avatar                     string    `json:"avatar"`
	Verified                   bool      `json:"verified"`
	LoggedIn                   bool      `json:"loggedIn"`
	VerificationToken          string    `json:"-"`
	VerificationTokenCreatedAt time.Time `json:"-"`
	CreatedAt                  time.Time `json:"createdAt"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}

// UserView es la proyección pública de una cuenta, sin secretos.
type UserView struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Verified  bool   `json:"verified"`
	LoggedIn  bool   `json:"loggedIn"`
	Avatar    string `json:"avatar"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Verified:  u.Verified,
		LoggedIn:  u.LoggedIn,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// UserFilter describe el listado de cuentas: filtros exactos, orden por id y paginación opcional.
type UserFilter struct {
	FirstName string
	LastName  string
	Page      int
	PerPage   int
	Order     SortOrder
}

// Paginated indica si hay que aplicar offset.
func (f UserFilter) Paginated() bool {
	return f.Page > 0 && f.PerPage > 0
}

func (f UserFilter) Offset() int {
	if !f.Paginated() {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// UserPage es la respuesta paginada del listado.
type UserPage struct {
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
	PageNumber int        `json:"pageNumber"`
	Users      []UserView `json:"users"`
}

// ProfilePatch lista las columnas que cambia una edición de perfil; nil conserva el valor guardado.
type ProfilePatch struct {
	Username     *string
	Email        *string
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

func (p ProfilePatch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.FirstName == nil && p.LastName == nil && p.PasswordHash == nil
}
