package wasm

// testWASMModule exports
//
//	fadd (f64, f64) -> f64
//	inc  (i32) -> i32
//	half (f64) -> f64
var testWASMModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // WASM_BINARY_MAGIC
	0x01, 0x00, 0x00, 0x00, // WASM_BINARY_VERSION
	// Type section
	0x01, 0x11, // section id, section size (17 bytes)
	0x03,                               // number of types
	0x60, 0x02, 0x7c, 0x7c, 0x01, 0x7c, // (func (param f64 f64) (result f64))
	0x60, 0x01, 0x7f, 0x01, 0x7f, // (func (param i32) (result i32))
	0x60, 0x01, 0x7c, 0x01, 0x7c, // (func (param f64) (result f64))
	// Function section
	0x03, 0x04, // section id, section size
	0x03,             // number of functions
	0x00, 0x01, 0x02, // type indexes
	// Export section
	0x07, 0x15, // section id, section size (21 bytes)
	0x03,                                     // number of exports
	0x04, 0x66, 0x61, 0x64, 0x64, 0x00, 0x00, // export "fadd" func 0
	0x03, 0x69, 0x6e, 0x63, 0x00, 0x01, // export "inc" func 1
	0x04, 0x68, 0x61, 0x6c, 0x66, 0x00, 0x02, // export "half" func 2
	// Code section
	0x0a, 0x20, // section id, section size (32 bytes)
	0x03, // number of functions
	// fadd
	0x07,       // body size
	0x00,       // no locals
	0x20, 0x00, // local.get 0
	0x20, 0x01, // local.get 1
	0xa0, // f64.add
	0x0b, // end
	// inc
	0x07,       // body size
	0x00,       // no locals
	0x20, 0x00, // local.get 0
	0x41, 0x01, // i32.const 1
	0x6a, // i32.add
	0x0b, // end
	// half
	0x0e,       // body size
	0x00,       // no locals
	0x20, 0x00, // local.get 0
	0x44, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xe0, 0x3f, // f64.const 0.5
	0xa2, // f64.mul
	0x0b, // end
}

// noF64Module exports only the i32 function.
var noF64Module = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x69, 0x6e, 0x63, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x41, 0x01, 0x6a, 0x0b,
}

// GetTestModule returns the sample module.
func GetTestModule() []byte {
	return testWASMModule
}
