package python

// The engine asset is served from the content root, not embedded.
//go:generate go run ../../internal/tools/download https://github.com/vmware-labs/webassembly-language-runtimes/releases/download/python%2F3.12.0%2B20231211-040d5a6/python-3.12.0.wasm ../../web/engine/python.wasm
