//go:build wasip1

// Command testmodule is a module of float primitives, the compiled
// counterpart of the hand-assembled test module. Build it with
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o floats.wasm
//
// and list the file under a language's wasm key.
package main

//go:wasmexport fadd
func fadd(a, b float64) float64 { return a + b }

//go:wasmexport half
func half(x float64) float64 { return x * 0.5 }

//go:wasmexport inc
func inc(x int32) int32 { return x + 1 }

func main() {}
