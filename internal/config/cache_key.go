package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// OwnerTokenKey returns the cache key registering an owner's active token.
func (r *CacheKeyStruct) OwnerTokenKey(ownerID string) string {
	return fmt.Sprintf("owner:%s:token", ownerID)
}

// SessionSnapshotKey returns the cache key for an owner's session snapshot.
func (r *CacheKeyStruct) SessionSnapshotKey(ownerID string) string {
	return fmt.Sprintf("owner:%s:snapshot", ownerID)
}

// SessionEventChannel returns the pub/sub channel for an owner's session events.
func (r *CacheKeyStruct) SessionEventChannel(ownerID string) string {
	return fmt.Sprintf("owner:%s:events", ownerID)
}

// SharedResultKey returns the cache key for a shared result payload.
func (r *CacheKeyStruct) SharedResultKey(shareID string) string {
	return fmt.Sprintf("share:%s:payload", shareID)
}

var CacheKey = NewCacheKeyStruct()
