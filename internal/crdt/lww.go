package crdt

import (
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// Decision результат сравнения локальной записи с входящим push-событием.
type Decision int

const (
	// DecisionApply входящая запись применяется к кэшу
	DecisionApply Decision = iota
	// DecisionRebase по записи есть неподтвержденная локальная операция:
	// видимое состояние не меняется, входящая запись становится новой базой для отката
	DecisionRebase
	// DecisionDiscard входящая версия старше локальной
	DecisionDiscard
)

func (d Decision) String() string {
	switch d {
	case DecisionApply:
		return "apply"
	case DecisionRebase:
		return "rebase"
	case DecisionDiscard:
		return "discard"
	}
	return "unknown"
}

// Resolve решает судьбу входящего upsert по правилу Last-Write-Wins.
//
// Локальная ожидающая запись побеждает, пока не разрешится (hasPending).
// Иначе сравниваются _version: входящая применяется, если она не старше текущей.
// Запись без версии (0) с любой стороны считается авторитетной серверной копией.
func Resolve(current, incoming *models.Entity, hasPending bool) Decision {
	if hasPending {
		return DecisionRebase
	}
	if current == nil || incoming == nil {
		return DecisionApply
	}
	if incoming.Version == 0 || current.Version == 0 {
		return DecisionApply
	}
	if current.IsNewerThan(incoming) {
		return DecisionDiscard
	}
	return DecisionApply
}

// ResolveDelete то же самое для удаления; version - версия удаления, если сервер ее прислал.
func ResolveDelete(current *models.Entity, version int64, hasPending bool) Decision {
	if hasPending {
		return DecisionRebase
	}
	if current == nil || version == 0 || current.Version == 0 {
		return DecisionApply
	}
	if current.Version > version {
		return DecisionDiscard
	}
	return DecisionApply
}
