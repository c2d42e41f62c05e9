// Package logger expone el zap singleton del servicio de autenticación
// adaptativa y sus campos estándar.
//
// El singleton se inicializa una sola vez en main:
//
//	logger.Init(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
//	defer logger.Sync()
//
// El middleware HTTP inyecta un logger scoped con el request_id en el
// contexto; cualquier capa puede recuperarlo sin saber si existe:
//
//	logger.From(ctx).Info("transacción creada", logger.TransactionID(id))
//
// En "dev" la salida es consola con colores; en "prod", JSON. Los tokens y
// credenciales nunca se loguean crudos (ver util.MaskToken).
package logger
