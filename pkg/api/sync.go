package api

import (
	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/hlc"
)

// ProtocolVersion версия протокола синхронизации
const ProtocolVersion = 1

// Hello открывает сессию синхронизации. Обе стороны отправляют свой Hello.
type Hello struct {
	NodeID          string        `json:"node_id"`          // NodeID узел-отправитель
	Cursor          hlc.Timestamp `json:"cursor"`           // Cursor последняя метка изменений получателя, уже принятая отправителем
	Clock           hlc.Timestamp `json:"clock"`            // Clock текущие часы отправителя
	ProtocolVersion int           `json:"protocol_version"` // ProtocolVersion версия протокола
}

// EntityEnvelope сущность вместе с именем таблицы
type EntityEnvelope struct {
	Entity *crdt.Entity `json:"entity"`
	Table  string       `json:"table"`
}

// PushRequest пачка изменений инициатора для ответчика
type PushRequest struct {
	NodeID   string           `json:"node_id"`  // NodeID инициатор
	Entities []EntityEnvelope `json:"entities"` // Entities изменения в порядке журнала
	Upto     hlc.Timestamp    `json:"upto"`     // Upto метка журнала инициатора, покрытая этой пачкой
	Final    bool             `json:"final"`    // Final последняя пачка направления
}

// PushResponse результат применения пачки
type PushResponse struct {
	Acked     hlc.Timestamp `json:"acked"`     // Acked новый курсор ответчика, только для последней пачки
	Merged    int           `json:"merged"`    // Merged вставленные или обновленные сущности
	Unchanged int           `json:"unchanged"` // Unchanged уже известные версии
	Conflicts int           `json:"conflicts"` // Conflicts разрешенные конфликты регистров
}

// PullRequest запрос страницы изменений ответчика
type PullRequest struct {
	NodeID string        `json:"node_id"` // NodeID инициатор
	After  hlc.Timestamp `json:"after"`   // After курсор инициатора для ответчика
	Limit  int           `json:"limit"`   // Limit размер страницы
}

// PullResponse страница изменений ответчика
type PullResponse struct {
	Entities []EntityEnvelope `json:"entities"`
	Upto     hlc.Timestamp    `json:"upto"`  // Upto метка последнего изменения страницы
	Final    bool             `json:"final"` // Final больше изменений нет
}

// AckRequest подтверждает, что инициатор принял изменения ответчика до Upto
type AckRequest struct {
	NodeID string        `json:"node_id"`
	Upto   hlc.Timestamp `json:"upto"`
}

// HealthResponse ответ health check
type HealthResponse struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
