// Package bootstrap runs a service through its lifecycle: validate config,
// start components, run hooks, wait for a signal, stop in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(redisComponent)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return a.RegisterComponent(httpServer)
//	})
//	err = app.Run(ctx)
//
// RunTask is the variant for one-shot commands.
package bootstrap
