package roster

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет чтение состава класса и запись номеров групп.
type Repository interface {
	// GetRoster возвращает класс со всеми присланными анкетами.
	// Возвращает ErrRosterNotFound, если кода нет.
	GetRoster(ctx context.Context, code string) (*Roster, error)

	// SaveGroups записывает номер группы каждому студенту класса.
	// Выполняется атомарно: либо все студенты обновлены, либо никто.
	SaveGroups(ctx context.Context, code string, groups map[int][]string) error

	// GetGroups возвращает студентов класса с сохранёнными номерами групп.
	// Возвращает ErrRosterNotFound, если кода нет.
	GetGroups(ctx context.Context, code string) ([]GroupMember, error)
}
