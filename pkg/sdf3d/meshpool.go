package sdf3d

// maxPooledWriters bounds the writers kept for reuse.
const maxPooledWriters = 256

var writerPool = make(chan *MeshWriter, maxPooledWriters)

// AcquireMeshWriter returns an empty writer from the pool.
func AcquireMeshWriter() *MeshWriter {
	select {
	case w := <-writerPool:
		return w
	default:
		return NewMeshWriter()
	}
}

// Release resets w and returns it to the pool. The writer must not be used
// afterwards.
func (w *MeshWriter) Release() {
	w.Reset()
	select {
	case writerPool <- w:
	default:
	}
}
