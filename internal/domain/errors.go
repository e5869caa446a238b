package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrForbidden    = errors.New("acceso denegado")
	ErrUnavailable  = errors.New("servicio no disponible")

	// Registro por clave (un único componente vivo por vendedor).
	ErrEmptyKey     = errors.New("registro: clave vacía")
	ErrDuplicateKey = errors.New("registro: ya existe una instancia para la clave")

	// Registros de facturación.
	ErrInvalidRecord = errors.New("registro de facturación inválido")
	ErrMixedRecord   = errors.New("registro de facturación con tipo y contenido incoherentes")

	// Cadena de huellas.
	ErrNotHead            = errors.New("cadena: el registro no es el último de la cadena")
	ErrNoRollbackHistory  = errors.New("cadena: no hay eslabón anterior en memoria para deshacer")
	ErrRollbackDepth      = errors.New("cadena: solo se admite deshacer un único eslabón")
	ErrLedgerInconsistent = errors.New("cadena: estado en memoria inconsistente con disco")

	// Cola de envío.
	ErrAlreadyPosted    = errors.New("envío: el evento ya fue remitido")
	ErrAlreadyCommitted = errors.New("envío: el registro ya está encadenado y no es un reenvío")
	ErrShuttingDown     = errors.New("envío: apagado en curso, no se aceptan eventos")
	ErrPendingEvents    = errors.New("envío: quedan eventos pendientes y no hay drenaje en curso")
	ErrNotResendable    = errors.New("envío: el evento no admite reenvío")

	// Configuración.
	ErrUnsupportedAlgorithm = errors.New("configuración: algoritmo de huella no soportado")
	ErrUnsupportedEncoding  = errors.New("configuración: codificación de huella no soportada")
)
