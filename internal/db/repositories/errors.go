package repositories

import "errors"

// Erros sentinela da camada de persistência. As camadas superiores
// classificam com errors.Is.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)
