package secretstore

import "sync"

// Memory keeps blobs in process memory. Nothing survives a restart.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{blobs: map[string][]byte{}}
}

func (m *Memory) Store(category, id string, blob []byte) error {
	if err := checkKey(category, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[category+"/"+id] = append([]byte(nil), blob...)
	return nil
}

func (m *Memory) Load(category, id string) ([]byte, error) {
	if err := checkKey(category, id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[category+"/"+id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

// Delete removes a blob, as an operator would out-of-band.
func (m *Memory) Delete(category, id string) {
	m.mu.Lock()
	delete(m.blobs, category+"/"+id)
	m.mu.Unlock()
}

func (m *Memory) Close() error { return nil }
