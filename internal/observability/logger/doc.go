// Package logger expone un logger Zap singleton con scoping por contexto.
//
// Inicialización (una vez en cmd/authemu):
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// En services, con el logger del request:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("SignInWithPassword"))
//	log.Info("signed in", logger.ProjectID(projectID), logger.LocalID(localID))
//
// Los codigos OOB y SMS se imprimen a nivel Info, igual que haria un
// proveedor real al mandar el mail o el SMS.
package logger
