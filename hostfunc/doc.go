// Package hostfunc provides host functions that guest code can call.
//
// A guest calls a function by name with a JSON object of arguments; the
// engine looks the name up in a [Registry] and returns the function's
// value, or its error message, as JSON.
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("greet", func(ctx context.Context, args map[string]any) (any, error) {
//	    return "hello " + args["name"].(string), nil
//	})
//
// Every engine registers [TimeNow] as time_now and a [NewLog] function as
// log. Functions passed through a custom registry are added to those.
package hostfunc
