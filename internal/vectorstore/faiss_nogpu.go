//go:build faiss && cgo && !faissgpu
// +build faiss,cgo,!faissgpu

package vectorstore

import (
	"fmt"
	"unsafe"
)

// gpuAvailable reports whether this binary was built with FAISS GPU support.
func gpuAvailable() bool { return false }

func indexToGPU(index unsafe.Pointer, device int) (unsafe.Pointer, error) {
	return nil, fmt.Errorf("GPU support not compiled in: build with -tags=faiss,faissgpu")
}

func indexToCPU(index unsafe.Pointer) (unsafe.Pointer, error) {
	return nil, fmt.Errorf("GPU support not compiled in: build with -tags=faiss,faissgpu")
}
