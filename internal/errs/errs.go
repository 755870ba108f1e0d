package errs

import "errors"

// Таксономия ошибок ядра (§ propagation policy):
// NotFound — нормальный исход чтения, не логируется как ошибка;
// Conflict — проигранная гонка за claim или дублирующий активный тикет;
// StoreUnavailable — отказ слоя персистентности при мутации.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)
