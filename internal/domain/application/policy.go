package application

import "github.com/admissions-hub/admissions-hub/internal/domain/shared"

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW ASSIGNMENT POLICY
// ══════════════════════════════════════════════════════════════════════════════
//
// Пока агент не назначен, первичное рассмотрение доступно любому агенту или
// администратору: выигрывает тот, чья запись сохранилась первой. После
// назначения действовать может только назначенный агент или администратор.

// IsEntitled возвращает true, если вызывающий может действовать по заявке
// после первичного рассмотрения.
func IsEntitled(caller Caller, app *Application) bool {
	switch c := caller.(type) {
	case AdminCaller:
		return true
	case AgentCaller:
		return app.IsAssigned() && c.Agent == app.AssignedAgent
	default:
		return false
	}
}

// CanInitialReview возвращает true для любого агента или администратора.
func CanInitialReview(caller Caller) bool {
	switch caller.(type) {
	case AgentCaller, AdminCaller:
		return true
	default:
		return false
	}
}

// IsOwner возвращает true, если вызывающий - студент-владелец заявки.
func IsOwner(caller Caller, app *Application) bool {
	s, ok := caller.(StudentCaller)
	return ok && s.User == app.OwnerID
}

// CanViewInternalNotes возвращает true для агентов и администраторов.
func CanViewInternalNotes(caller Caller) bool {
	return CanInitialReview(caller)
}

// ReviewerID - идентичность, под которой вызывающий записывается в заявку.
// Администратор без профиля агента записывается своим идентификатором пользователя.
func ReviewerID(caller Caller) shared.AgentID {
	switch c := caller.(type) {
	case AgentCaller:
		return c.Agent
	case AdminCaller:
		if !c.Agent.IsEmpty() {
			return c.Agent
		}
		return shared.AgentID(c.User)
	default:
		return ""
	}
}

func requireEntitled(op string, caller Caller, app *Application) error {
	if !IsEntitled(caller, app) {
		return shared.WrapError("application", op, shared.ErrForbidden,
			"only the assigned agent or an admin may act on this application", shared.ErrNotEntitled)
	}
	return nil
}
