package gltfutil

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Waterpicker/JglTF/geom"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

func Load(path string) (*gltf.Document, error) {
	return gltf.Open(path)
}

// Save writes .glb as binary and anything else as .gltf with the buffers
// embedded as data URIs.
func Save(doc *gltf.Document, path string) error {
	if strings.ToLower(filepath.Ext(path)) == ".glb" {
		return gltf.SaveBinary(doc, path)
	}
	for _, b := range doc.Buffers {
		b.EmbeddedResource()
	}
	return gltf.Save(doc, path)
}

// WriteMatrices stores column-major 4x4 matrices as one MAT4 accessor.
func WriteMatrices(doc *gltf.Document, mats []mgl32.Mat4) uint32 {
	a := make([][4]float32, 0, len(mats)*4)
	for _, m := range mats {
		c := geom.Columns(m)
		a = append(a, c[0], c[1], c[2], c[3])
	}
	acc := modeler.WriteTangent(doc, a)
	doc.Accessors[acc].Type = gltf.AccessorMat4
	doc.Accessors[acc].Count /= 4
	doc.BufferViews[*doc.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

// WriteTimes stores animation input times with the min/max glTF requires.
func WriteTimes(doc *gltf.Document, times []float32) uint32 {
	acc := modeler.WriteAccessor(doc, gltf.TargetArrayBuffer, times)
	if len(times) > 0 {
		min, max := times[0], times[0]
		for _, t := range times {
			min = float32(math.Min(float64(min), float64(t)))
			max = float32(math.Max(float64(max), float64(t)))
		}
		doc.Accessors[acc].Min = []float32{min}
		doc.Accessors[acc].Max = []float32{max}
	}
	return acc
}

func readMatrix(data []byte) mgl32.Mat4 {
	var mat mgl32.Mat4
	for i := 0; i < 16; i++ {
		d := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		mat[i] = math.Float32frombits(d)
	}
	return mat
}

// ReadMatrices reads a MAT4 float accessor back from its buffer.
func ReadMatrices(doc *gltf.Document, acc uint32) ([]mgl32.Mat4, error) {
	accessor := doc.Accessors[acc]
	if accessor.Type != gltf.AccessorMat4 || accessor.BufferView == nil {
		return nil, fmt.Errorf("accessor %d is not a MAT4 buffer", acc)
	}
	bufferView := doc.BufferViews[*accessor.BufferView]
	data := doc.Buffers[bufferView.Buffer].Data
	stride := bufferView.ByteStride
	if stride == 0 {
		stride = 64
	}
	mats := make([]mgl32.Mat4, 0, accessor.Count)
	for i := uint32(0); i < accessor.Count; i++ {
		offset := bufferView.ByteOffset + accessor.ByteOffset + i*stride
		if int(offset)+64 > len(data) {
			return nil, fmt.Errorf("accessor %d overruns its buffer", acc)
		}
		mats = append(mats, readMatrix(data[offset:offset+64]))
	}
	return mats, nil
}
