package model

import "errors"

var (
	// ErrValidation возвращается при некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound возвращается, если запрошенный ресурс отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientPoints возвращается при попытке списать больше баллов, чем есть на счёте.
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	// ErrUpstreamUnavailable возвращается, если хранилище недоступно или отвечает ошибкой сервера.
	ErrUpstreamUnavailable = errors.New("resource store unavailable")
	// ErrConflict возвращается при конфликте версий или дублировании ресурса.
	ErrConflict = errors.New("conflict")
	// ErrRoomUnavailable возвращается, если номер закрыт или занят на выбранные даты.
	ErrRoomUnavailable = errors.New("room unavailable for the selected dates")
	// ErrInconsistentState возвращается, если компенсирующая запись не удалась и данные расходятся.
	ErrInconsistentState = errors.New("inconsistent state")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается, если роль пользователя не позволяет выполнить операцию.
	ErrForbidden = errors.New("forbidden")
)
