//go:build faiss && cgo && faissgpu
// +build faiss,cgo,faissgpu

package vectorstore

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c -lfaiss_c_gpu

#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/gpu/StandardGpuResources_c.h>
#include <faiss/c_api/gpu/GpuAutoTune_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// gpuAvailable reports whether this binary was built with FAISS GPU support.
func gpuAvailable() bool { return true }

// indexToGPU clones a CPU index onto the given GPU device. The returned
// pointer is a new index; the caller owns freeing the original.
func indexToGPU(index unsafe.Pointer, device int) (unsafe.Pointer, error) {
	var res *C.FaissStandardGpuResources
	if ret := C.faiss_StandardGpuResources_new(&res); ret != 0 {
		return nil, fmt.Errorf("allocate GPU resources: %s", gpuLastError())
	}

	var gpuIndex *C.FaissGpuIndex
	ret := C.faiss_index_cpu_to_gpu(
		(*C.FaissGpuResourcesProvider)(unsafe.Pointer(res)),
		C.int(device),
		(*C.FaissIndex)(index),
		&gpuIndex,
	)
	if ret != 0 {
		return nil, fmt.Errorf("transfer index to GPU: %s", gpuLastError())
	}
	return unsafe.Pointer(gpuIndex), nil
}

// indexToCPU clones a GPU index back to host memory for serialization.
func indexToCPU(index unsafe.Pointer) (unsafe.Pointer, error) {
	var cpuIndex *C.FaissIndex
	if ret := C.faiss_index_gpu_to_cpu((*C.FaissIndex)(index), &cpuIndex); ret != 0 {
		return nil, fmt.Errorf("transfer index to CPU: %s", gpuLastError())
	}
	return unsafe.Pointer(cpuIndex), nil
}

func gpuLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}
