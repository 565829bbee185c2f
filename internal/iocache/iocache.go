package iocache

import (
	"sync"

	"github.com/huangsam/reposcore/internal/contract"
)

// CacheStoreManager manages the signal cache and the run store.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	signals      contract.CacheStore
	runs         contract.RunStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// GetSignalStore returns the remote signal CacheStore, or nil when caching is off.
func (mgr *CacheStoreManager) GetSignalStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.signals
}

// GetRunStore returns the RunStore, or nil when run tracking is off.
func (mgr *CacheStoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}
