package heart

import "sync/atomic"

// Store 持有当前生效的Predictor, 重新加载时整体替换
type Store struct {
	current atomic.Pointer[Predictor]
}

func NewStore(p *Predictor) *Store {
	s := &Store{}
	s.current.Store(p)
	return s
}

func (s *Store) Current() *Predictor {
	return s.current.Load()
}

// Swap 替换Predictor并返回旧值
func (s *Store) Swap(p *Predictor) *Predictor {
	return s.current.Swap(p)
}
