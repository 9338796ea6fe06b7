package instance

import "errors"

// Erros de domínio do gerenciador de instâncias. A camada HTTP os traduz
// em códigos de status com errors.Is.
var (
	ErrInstanceNotFound      = errors.New("instance not found")
	ErrInstanceAlreadyExists = errors.New("instance already exists")
	ErrNotConnected          = errors.New("instance not connected")
	ErrBadInput              = errors.New("invalid input")
	ErrNotInitialized        = errors.New("manager not initialized")
)
