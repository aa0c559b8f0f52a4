package application

import "github.com/admissions-hub/admissions-hub/internal/domain/shared"

// Role - роль вызывающего пользователя.
type Role string

const (
	RoleStudent Role = "student"
	RoleAgent   Role = "agent"
	RoleAdmin   Role = "admin"
)

// IsValid проверяет, что роль корректна.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleAgent, RoleAdmin:
		return true
	default:
		return false
	}
}

// Caller - уже аутентифицированный участник процесса.
// Это закрытый вариант: реализуют его только StudentCaller, AgentCaller и AdminCaller.
// Роль определяется один раз на границе системы.
type Caller interface {
	Role() Role
	UserID() shared.UserID
	sealed()
}

// StudentCaller - студент, владелец заявки.
type StudentCaller struct {
	User shared.UserID
}

func (c StudentCaller) Role() Role            { return RoleStudent }
func (c StudentCaller) UserID() shared.UserID { return c.User }
func (StudentCaller) sealed()                 {}

// AgentCaller - консультант с профилем агента.
type AgentCaller struct {
	User  shared.UserID
	Agent shared.AgentID
}

func (c AgentCaller) Role() Role            { return RoleAgent }
func (c AgentCaller) UserID() shared.UserID { return c.User }
func (AgentCaller) sealed()                 {}

// AdminCaller - администратор. Профиль агента у него может отсутствовать.
type AdminCaller struct {
	User  shared.UserID
	Agent shared.AgentID
}

func (c AdminCaller) Role() Role            { return RoleAdmin }
func (c AdminCaller) UserID() shared.UserID { return c.User }
func (AdminCaller) sealed()                 {}

// NewCaller собирает вариант по роли и идентификаторам из токена.
func NewCaller(role Role, user shared.UserID, agent shared.AgentID) (Caller, error) {
	if user.IsEmpty() {
		return nil, shared.NewDomainError("application", "NewCaller", shared.ErrUnauthorized, "caller identity is missing")
	}
	switch role {
	case RoleStudent:
		return StudentCaller{User: user}, nil
	case RoleAgent:
		if agent.IsEmpty() {
			return nil, shared.NewDomainError("application", "NewCaller", shared.ErrForbidden,
				"agent account is not linked to an agent profile")
		}
		return AgentCaller{User: user, Agent: agent}, nil
	case RoleAdmin:
		return AdminCaller{User: user, Agent: agent}, nil
	default:
		return nil, shared.NewDomainError("application", "NewCaller", shared.ErrForbidden, "unknown role")
	}
}
