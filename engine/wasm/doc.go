// Package wasm runs an interpreter compiled to WebAssembly as an
// [engine.Engine], using wazero.
//
// The guest is a WASI command that starts a bridge loop. The host writes
// one JSON command per line on the guest's stdin:
//
//	{"type":"path","path":"/app"}
//	{"type":"import","module":"funlang_runner","symbol":"eval_funlang"}
//	{"type":"eval","entry":"funlang_runner.eval_funlang","source":"...","config":"/app/configs/x.json"}
//	{"type":"exit"}
//
// and the guest answers each one on stderr with a reply frame
// (\x00FUNHOST_REPLY:{"ok":true,"value":...}\x00). The guest signals
// \x00FUNHOST_READY\x00 once before reading its first command, and may call
// host functions from a [hostfunc.Registry] while handling a command.
//
// The engine's private filesystem is an in-memory tree mounted read-only at
// "/" in the guest; files written with [Engine.Filesystem] are visible to
// the guest immediately.
package wasm

//go:generate env GOOS=wasip1 GOARCH=wasm go build -o testdata/guest.wasm ./testdata/guest.go
