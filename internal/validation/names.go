package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// IdentifierPattern определяет допустимый формат имени таблицы или поля
// Только строчные латинские буквы (a-z), цифры (0-9), нижнее подчеркивание (_),
// первый символ - буква. Длина: 1-63 символа
var IdentifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// PathPattern определяет допустимый формат пути в JSON-документе сущности
// Например: status.value, updated_at.physical_time_ms, id
var PathPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}(\.[a-z][a-z0-9_]{0,62}){0,3}$`)

// NodeIDPattern определяет допустимый формат идентификатора узла
// Двоеточие запрещено: оно разделяет части строкового представления HLC метки
var NodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

const (
	// MaxIdentifierLen максимальная длина имени таблицы или поля
	MaxIdentifierLen = 63
	// MinPassphraseLen минимальная длина пароля кластера
	MinPassphraseLen = 12
)

// ReservedFields имена верхнего уровня JSON-документа сущности,
// которые не могут использоваться как имена полей
var ReservedFields = map[string]struct{}{
	"id":             {},
	"created_at":     {},
	"updated_at":     {},
	"node_id":        {},
	"schema_version": {},
	"is_deleted":     {},
}

// ValidateTableName проверяет имя таблицы
func ValidateTableName(table string) error {
	if table == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if len(table) > MaxIdentifierLen {
		return fmt.Errorf("table name must not exceed %d characters", MaxIdentifierLen)
	}
	if !IdentifierPattern.MatchString(table) {
		return fmt.Errorf("table name %q can only contain lowercase letters, numbers and underscores and must start with a letter", table)
	}
	return nil
}

// ValidateFieldName проверяет имя поля сущности
// Имя не должно совпадать с зарезервированными ключами документа
func ValidateFieldName(field string) error {
	if field == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if len(field) > MaxIdentifierLen {
		return fmt.Errorf("field name must not exceed %d characters", MaxIdentifierLen)
	}
	if !IdentifierPattern.MatchString(field) {
		return fmt.Errorf("field name %q can only contain lowercase letters, numbers and underscores and must start with a letter", field)
	}
	if _, reserved := ReservedFields[field]; reserved {
		return fmt.Errorf("field name %q is reserved", field)
	}
	return nil
}

// ValidatePath проверяет путь запроса в JSON-документе.
// Путь подставляется в SQL как литерал, поэтому допускается только строгий формат
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !PathPattern.MatchString(path) {
		return fmt.Errorf("invalid path %q: expected dotted lowercase identifiers, e.g. status.value", path)
	}
	return nil
}

// ValidateNodeID проверяет идентификатор узла
func ValidateNodeID(nodeID string) error {
	if strings.TrimSpace(nodeID) == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	if !NodeIDPattern.MatchString(nodeID) {
		return fmt.Errorf("node id %q can only contain letters, numbers, '.', '_' and '-' (max 64)", nodeID)
	}
	return nil
}

// ValidatePassphrase проверяет минимальные требования к паролю кластера
// Минимум 12 символов
func ValidatePassphrase(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase cannot be empty")
	}

	if len(passphrase) < MinPassphraseLen {
		return fmt.Errorf("passphrase must be at least %d characters long", MinPassphraseLen)
	}

	return nil
}
